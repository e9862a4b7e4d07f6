package access

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/logger"
)

// BackdoorMiddlewareBuilder is a helper builder for BackdoorMiddelware
type BackdoorMiddlewareBuilder struct {
	// Backdoors is a mapping from a bearer token to an actual authorization
	Backdoors map[string]Authorization
	// CookieName is the session cookie. Defaults to DefaultSessionCookie.
	CookieName string
}

// NewBackdoorMiddelware returns a middleware handler for a backdoor
//
// The key for the backdoors map is the bearer token passed with the request.
//
// Example: if you specify the backdoor
//   "please": Authorization{Identity: "dev", Roles:[]string{"admin"}}
// then any request with an authorization bearer token consisting of the single
// magic word "please" will be authorized with the admin role.
//
// With curl, use -H 'Authorization: Bearer please' or pass a cookie with
// -b '__session=please'
//
// Unknown tokens are passed on untouched, so the backdoor can be chained in
// front of the jwt middleware.
func NewBackdoorMiddelware(bmb *BackdoorMiddlewareBuilder) mux.MiddlewareFunc {
	cookieName := bmb.CookieName
	if len(cookieName) == 0 {
		cookieName = DefaultSessionCookie
	}
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := AuthorizationFromContext(r.Context()); auth != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			tokenString, _ := tokenFromRequest(r, cookieName)
			tryAuth, ok := bmb.Backdoors[tokenString]
			if len(tokenString) == 0 || !ok {
				h.ServeHTTP(w, r)
				return
			}
			auth := tryAuth
			ctx, _ := logger.ContextWithLoggerIdentity(r.Context(), auth.Identity)
			ctx = ContextWithAuthorization(ctx, &auth)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
