/*Package access provides utilities for access control
 */
package access

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/promptlib/core"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyAuthorization contextKey = "_authorization_"
)

/*Authorization is a context object which stores authorization information
for the signed-in member.

An authorization carries the identity issued by the identity provider, the
list of roles looked up from the database, and additional properties like
the member's email address and display name.

Authorizations are added to a request context with

  ctx = access.ContextWithAuthorization(ctx, auth)

and retrieved with

  auth := access.AuthorizationFromContext(ctx)

Authorization objects are added to the context by the JWT middleware, or the
backdoor middleware during development.
*/
type Authorization struct {
	Identity   string            `json:"identity"`
	Roles      []string          `json:"roles"`
	Properties map[string]string `json:"properties,omitempty"`
}

// HasRole returns true if the authorization contains the requested role;
// otherwise it returns false.
func (a *Authorization) HasRole(role string) bool {
	if a == nil || a.Roles == nil {
		return false
	}
	for _, hasRole := range a.Roles {
		if role == hasRole {
			return true
		}
	}
	return false
}

// IsSignedIn returns true if the authorization belongs to an authenticated identity
func (a *Authorization) IsSignedIn() bool {
	return a != nil && len(a.Identity) > 0
}

// Role returns the most privileged role of the authorization, or "" for anonymous requests
func (a *Authorization) Role() string {
	if !a.IsSignedIn() {
		return ""
	}
	if a.HasRole(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// Property returns the value for the requested property; if the
// property does not exist, it returns an empty string and false.
func (a *Authorization) Property(name string) (string, bool) {
	if a == nil || a.Properties == nil {
		return "", false
	}
	value, ok := a.Properties[name]
	return value, ok
}

// Permit is a permission given to a role for a set of operations
type Permit struct {
	Role       string           `json:"role"`
	Operations []core.Operation `json:"operations"`
}

// IsAuthorized returns true if the authorization is authorized for the requested
// operation according to the passed permits.
//
// The "admin" role is always authorized by default, unless specified otherwise.
// A permit given to "everybody" applies to all signed-in roles, a permit
// given to "public" applies to everyone including anonymous requests.
func (a *Authorization) IsAuthorized(operation core.Operation, permits []Permit) bool {
	var roles []string
	if a.IsSignedIn() {
		roles = append(roles, a.Roles...)
		roles = append(roles, "everybody")
	}
	roles = append(roles, "public")

	for _, role := range roles {
		specified := false
		for _, permit := range permits {
			if permit.Role != role {
				continue
			}
			specified = true
			for _, o := range permit.Operations {
				if o == operation {
					return true
				}
			}
		}
		if !specified && role == RoleAdmin {
			return true // admin by default is always authorized
		}
	}
	return false
}

// ContextWithAuthorization returns a new context with the authorization added to it
func ContextWithAuthorization(ctx context.Context, auth *Authorization) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, auth)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, ok := ctx.Value(contextKeyAuthorization).(*Authorization)
	if ok {
		return a
	}
	return nil
}

type cachedAuthorization struct {
	auth     *Authorization
	expireAt time.Time
}

// AuthorizationCache is an in-memory cache for authorizations. It is used by
// jwt middleware to cache authorization objects for bearer tokens, so the role
// is not looked up from the database for every single request.
//
// Entries are keyed by token and live as long as the token is valid.
type AuthorizationCache struct {
	mutex sync.RWMutex
	cache map[string]cachedAuthorization
	now   func() time.Time
}

// NewAuthorizationCache creates a new authorization cache
func NewAuthorizationCache() *AuthorizationCache {
	return &AuthorizationCache{cache: make(map[string]cachedAuthorization), now: time.Now}
}

// Read returns an authorization from in-process cache, or nil if there is none
// or the token it was derived from has expired.
// This function is go-routine safe
func (a *AuthorizationCache) Read(token string) *Authorization {
	a.mutex.RLock()
	entry, ok := a.cache[token]
	a.mutex.RUnlock()
	if !ok {
		return nil
	}
	if !entry.expireAt.IsZero() && !a.now().Before(entry.expireAt) {
		a.mutex.Lock()
		delete(a.cache, token)
		a.mutex.Unlock()
		return nil
	}
	return entry.auth
}

// Write stores an authorization in the in-memory cache until expireAt.
// A zero expireAt keeps the entry for the lifetime of the process.
// This function is go-routine safe
func (a *AuthorizationCache) Write(token string, auth *Authorization, expireAt time.Time) {
	a.mutex.Lock()
	a.cache[token] = cachedAuthorization{auth: auth, expireAt: expireAt}
	a.mutex.Unlock()
}
