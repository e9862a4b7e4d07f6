package access

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleMap struct {
	roles map[string]string
	err   error
	calls int
}

func (m *roleMap) RoleOf(ctx context.Context, identity string) (string, error) {
	m.calls++
	return m.roles[identity], m.err
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims identityClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(subject string) identityClaims {
	return identityClaims{
		Email: subject + "@example.com",
		Name:  "Pastor " + subject,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			Issuer:    "https://issuer.example.com",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
}

// echoAuthorization answers with the authorization found in the request context
var echoAuthorization = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	auth := AuthorizationFromContext(r.Context())
	if auth == nil {
		w.Write([]byte("anonymous"))
		return
	}
	json.NewEncoder(w).Encode(auth)
})

func serve(h http.Handler, r *http.Request) (*httptest.ResponseRecorder, *Authorization) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Body.String() == "anonymous" {
		return rec, nil
	}
	var auth Authorization
	if err := json.Unmarshal(rec.Body.Bytes(), &auth); err != nil {
		return rec, nil
	}
	return rec, &auth
}

func TestJwtMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	roles := &roleMap{roles: map[string]string{"boss": RoleAdmin, "member": RoleUser}}
	var authenticated []string

	mw := NewJwtMiddelware(&JwtMiddlewareBuilder{
		Issuer: "https://issuer.example.com",
		Keys:   map[string]*rsa.PublicKey{"k1": &key.PublicKey},
		Roles:  roles,
		OnAuthenticated: func(ctx context.Context, auth *Authorization) error {
			authenticated = append(authenticated, auth.Identity)
			return nil
		},
	})
	h := mw(echoAuthorization)

	t.Run("anonymous", func(t *testing.T) {
		rec, auth := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, auth)
	})

	t.Run("admin bearer", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, key, "k1", validClaims("boss")))
		_, auth := serve(h, r)
		require.NotNil(t, auth)
		assert.Equal(t, "boss", auth.Identity)
		assert.Equal(t, []string{RoleAdmin}, auth.Roles)
		assert.Equal(t, "boss@example.com", auth.Properties["email"])
		assert.Equal(t, "Pastor boss", auth.Properties["name"])
	})

	t.Run("cached per token", func(t *testing.T) {
		token := signToken(t, key, "k1", validClaims("member"))
		before := roles.calls
		for i := 0; i < 3; i++ {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
			_, auth := serve(h, r)
			require.NotNil(t, auth)
			assert.Equal(t, []string{RoleUser}, auth.Roles)
		}
		assert.Equal(t, before+1, roles.calls)
	})

	t.Run("unknown user is member", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, key, "k1", validClaims("newcomer")))
		_, auth := serve(h, r)
		require.NotNil(t, auth)
		assert.Equal(t, []string{RoleUser}, auth.Roles)
	})

	t.Run("invalid header token", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, other, "k1", validClaims("boss")))
		rec, _ := serve(h, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims("boss")
		claims.Issuer = "https://evil.example.com"
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, key, "k1", claims))
		rec, _ := serve(h, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired cookie is anonymous", func(t *testing.T) {
		claims := validClaims("boss")
		claims.ExpiresAt = time.Now().Add(-time.Hour).Unix()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: signToken(t, key, "k1", claims)})
		rec, auth := serve(h, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, auth)
	})

	assert.Contains(t, authenticated, "boss")
	assert.Contains(t, authenticated, "member")
}

func TestJwtMiddlewareRoleLookupFailure(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	roles := &roleMap{err: errors.New("database down")}
	h := NewJwtMiddelware(&JwtMiddlewareBuilder{
		Keys:  map[string]*rsa.PublicKey{"k1": &key.PublicKey},
		Roles: roles,
	})(echoAuthorization)

	token := signToken(t, key, "k1", validClaims("boss"))
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		_, auth := serve(h, r)
		require.NotNil(t, auth)
		assert.Equal(t, []string{RoleUser}, auth.Roles)
	}
	// failed lookups are not cached
	assert.Equal(t, 2, roles.calls)
}

func TestJwtMiddlewareDownloadsCertificates(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	certificates := map[string]string{
		"remote": string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		"broken": "not a certificate",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(certificates)
	}))
	defer server.Close()

	h := NewJwtMiddelware(&JwtMiddlewareBuilder{PublicKeyDownloadURL: server.URL})(echoAuthorization)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, key, "remote", validClaims("member")))
	_, auth := serve(h, r)
	require.NotNil(t, auth)
	assert.Equal(t, "member", auth.Identity)
}

func TestBackdoorMiddleware(t *testing.T) {
	h := NewBackdoorMiddelware(&BackdoorMiddlewareBuilder{
		Backdoors: map[string]Authorization{
			"please": {Identity: "dev", Roles: []string{RoleAdmin}},
		},
	})(echoAuthorization)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer please")
	_, auth := serve(h, r)
	require.NotNil(t, auth)
	assert.Equal(t, "dev", auth.Identity)
	assert.True(t, auth.HasRole(RoleAdmin))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "please"})
	_, auth = serve(h, r)
	require.NotNil(t, auth)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer pretty please")
	_, auth = serve(h, r)
	assert.Nil(t, auth)
}
