package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/logger"
)

// UnauthorizedURL is where signed-in visitors without admin role are sent from admin pages
const UnauthorizedURL = "/?error=unauthorized"

var protectedPrefixes = []string{"/profile", "/submit", "/admin"}

const adminPrefix = "/admin"

// RouteGuardBuilder is a helper builder for NewRouteGuard
type RouteGuardBuilder struct {
	// SignInURL is the sign-in page of the identity provider. The original
	// request is appended as redirect_url.
	SignInURL string
	// Roles looks up the stored role for admin pages. Without it, the role of
	// the request authorization is used.
	Roles access.RoleLookup
}

// NewRouteGuard returns a middleware which protects the member and admin pages.
//
// Anonymous requests for protected pages are redirected to the sign-in page.
// For admin pages the role is looked up on every request, so a revoked admin
// loses access immediately. A missing user, another role or a failed lookup
// redirect to UnauthorizedURL.
//
// The guard must run after the authentication middlewares.
func NewRouteGuard(rgb *RouteGuardBuilder) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !isProtected(path) {
				h.ServeHTTP(w, r)
				return
			}
			auth := access.AuthorizationFromContext(r.Context())
			if !auth.IsSignedIn() {
				http.Redirect(w, r, signInRedirect(rgb.SignInURL, r), http.StatusFound)
				return
			}
			if strings.HasPrefix(path, adminPrefix) {
				role := auth.Role()
				if rgb.Roles != nil {
					var err error
					role, err = rgb.Roles.RoleOf(r.Context(), auth.Identity)
					if err != nil {
						logger.FromContext(r.Context()).WithError(err).Errorln("Error 4724: cannot check admin role")
						role = ""
					}
				}
				if !access.IsAdmin(role) {
					http.Redirect(w, r, UnauthorizedURL, http.StatusFound)
					return
				}
			}
			h.ServeHTTP(w, r)
		})
	}
}

func isProtected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func signInRedirect(signInURL string, r *http.Request) string {
	u, err := url.Parse(signInURL)
	if err != nil {
		return signInURL
	}
	q := u.Query()
	q.Set("redirect_url", r.URL.RequestURI())
	u.RawQuery = q.Encode()
	return u.String()
}
