package access

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/registry"
)

// DefaultSessionCookie is the cookie the identity provider stores the session token in
const DefaultSessionCookie = "__session"

// certificateRefreshInterval is the age after which well known certificates are downloaded again
const certificateRefreshInterval = 6 * time.Hour

// RoleLookup resolves the stored role of an identity. An empty role without
// error means there is no user record for that identity.
type RoleLookup interface {
	RoleOf(ctx context.Context, identity string) (string, error)
}

// JwtMiddlewareBuilder is a helper builder for JwtMiddelware
type JwtMiddlewareBuilder struct {
	// PublicKeyDownloadURL is the download url for public keys, a json object mapping
	// key ids to PEM encoded certificates or public keys.
	PublicKeyDownloadURL string
	// Issuer is the accepted issuer for the token. Empty accepts any issuer.
	Issuer string
	// Registry caches the downloaded certificates. Optional.
	Registry *registry.Registry
	// Keys are additional well known keys by key id. Optional.
	Keys map[string]*rsa.PublicKey
	// CookieName is the session cookie. Defaults to DefaultSessionCookie.
	CookieName string
	// Roles looks up the stored role for an authenticated identity. Optional, without
	// it every authenticated identity has the user role.
	Roles RoleLookup
	// OnAuthenticated is called once per new token, before the role is looked up.
	// Errors are logged. Optional.
	OnAuthenticated func(ctx context.Context, auth *Authorization) error
	// HTTPClient downloads the certificates. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type identityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.StandardClaims
}

// NewJwtMiddelware returns a middleware handler to validate
// JWT bearer token.
//
// Java-Web-Token (JWT) are accepted as "Authorization: Bearer"
// header or as session cookie.
//
// The identity of a request is the subject of the token. The role is looked up
// with the builder's RoleLookup and cached together with the token, so a new
// token enforces a new database lookup.
//
// This is a final handler with regards to the bearer header. It will return
// http.StatusUnauthorized when a header token is available but invalid. An
// invalid session cookie is treated as anonymous request, since the cookie
// may simply have expired.
func NewJwtMiddelware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {
	rlog := logger.Default()

	wellKnownKeys := map[string]*rsa.PublicKey{}
	for kid, key := range jmb.Keys {
		wellKnownKeys[kid] = key
	}
	if len(jmb.PublicKeyDownloadURL) > 0 {
		certificates, err := loadCertificates(context.Background(), jmb)
		if err != nil {
			rlog.WithError(err).Errorln("Error 4720: cannot load well known certificates")
		}
		for kid, cert := range certificates {
			key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
			if err != nil {
				rlog.WithError(err).Warningln("certificate error for kid", kid)
				continue
			}
			wellKnownKeys[kid] = key
		}
	}
	rlog.Infof("jwt middleware has %d well known keys", len(wellKnownKeys))

	jwksLookup := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		key, ok := wellKnownKeys[kid]
		if ok {
			return key, nil
		}
		return nil, errors.New("cannot verify token")
	}

	cookieName := jmb.CookieName
	if len(cookieName) == 0 {
		cookieName = DefaultSessionCookie
	}
	authCache := NewAuthorizationCache()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := AuthorizationFromContext(r.Context()); auth != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			tokenString, fromHeader := tokenFromRequest(r, cookieName)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			rlog := logger.FromContext(r.Context())

			claims := identityClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, jwksLookup)
			if err == nil && (!token.Valid || len(claims.Subject) == 0 ||
				(len(jmb.Issuer) > 0 && claims.Issuer != jmb.Issuer)) {
				err = errors.New("token not acceptable")
			}
			if err != nil {
				rlog.WithError(err).Debugln("invalid token")
				if fromHeader {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				h.ServeHTTP(w, r)
				return
			}

			identity := claims.Subject
			ctx, rlog := logger.ContextWithLoggerIdentity(r.Context(), identity)

			auth := authCache.Read(tokenString)
			if auth == nil {
				auth = &Authorization{
					Identity:   identity,
					Roles:      []string{RoleUser},
					Properties: map[string]string{},
				}
				if len(claims.Email) > 0 {
					auth.Properties["email"] = claims.Email
				}
				if len(claims.Name) > 0 {
					auth.Properties["name"] = claims.Name
				}
				if jmb.OnAuthenticated != nil {
					if err := jmb.OnAuthenticated(ctx, auth); err != nil {
						rlog.WithError(err).Errorln("Error 4721: on authenticated hook failed")
					}
				}
				cacheable := true
				if jmb.Roles != nil {
					role, err := jmb.Roles.RoleOf(ctx, identity)
					if err != nil {
						rlog.WithError(err).Errorln("Error 4723: cannot look up role")
						cacheable = false
					} else if IsAdmin(role) {
						auth.Roles = []string{RoleAdmin}
					}
				}
				if cacheable {
					var expireAt time.Time
					if claims.ExpiresAt > 0 {
						expireAt = time.Unix(claims.ExpiresAt, 0)
					}
					authCache.Write(tokenString, auth, expireAt)
				}
			}

			ctx = ContextWithAuthorization(ctx, auth)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest returns the token and whether it was passed as header
func tokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 0 && bearer != "null" {
		if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
			return bearer[7:], true
		}
		return bearer, true
	}
	if cookie, _ := r.Cookie(cookieName); cookie != nil {
		return cookie.Value, false
	}
	return "", false
}

// loadCertificates returns the certificates from the registry if they are fresh,
// otherwise it downloads them. If the download fails, stale certificates are used.
func loadCertificates(ctx context.Context, jmb *JwtMiddlewareBuilder) (map[string]string, error) {
	var (
		certificates map[string]string
		timestamp    time.Time
		accessor     registry.Accessor
		err          error
	)
	if jmb.Registry != nil {
		accessor = jmb.Registry.Accessor("_jwt_")
		timestamp, err = accessor.Read(ctx, jmb.PublicKeyDownloadURL, &certificates)
		if err != nil {
			logger.Default().WithError(err).Warningln("cannot read cached certificates")
		}
		if !timestamp.IsZero() && time.Since(timestamp) < certificateRefreshInterval {
			return certificates, nil
		}
	}

	client := jmb.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	downloaded, err := downloadCertificates(ctx, client, jmb.PublicKeyDownloadURL)
	if err != nil {
		if len(certificates) > 0 {
			logger.Default().WithError(err).Warningln("using stale certificates")
			return certificates, nil
		}
		return nil, err
	}
	if jmb.Registry != nil {
		if err := accessor.Write(ctx, jmb.PublicKeyDownloadURL, downloaded); err != nil {
			logger.Default().WithError(err).Warningln("cannot cache certificates")
		}
	}
	return downloaded, nil
}

func downloadCertificates(ctx context.Context, client *http.Client, url string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot download certificates: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot download certificates: status %d", res.StatusCode)
	}
	var certificates map[string]string
	if err := json.NewDecoder(res.Body).Decode(&certificates); err != nil {
		return nil, fmt.Errorf("cannot decode certificates: %w", err)
	}
	return certificates, nil
}
