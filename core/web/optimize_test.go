package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheControlFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", cacheLanding},
		{"/directory", cacheLanding},
		{"/directory/8f0e", cacheDetail},
		{"/blogs/easter", cacheDetail},
		{"/blogs", cacheBlogIndex},
		{"/privacy", cacheLegal},
		{"/terms", cacheLegal},
		{"/subscribe", cacheDefault},
		{"/api/prompts", cacheDefault},
		{"/sitemap.xml", ""},
		{"/sitemap.xml.gz", ""},
		{"/admin", ""},
		{"/admin/prompts", ""},
		{"/profile", ""},
		{"/submit", ""},
		{"/submitted", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CacheControlFor(tt.path), tt.path)
	}
}

func TestOptimizationMiddleware(t *testing.T) {
	serve := func(path, contentType, cacheControl string, body []byte) *httptest.ResponseRecorder {
		h := OptimizationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(contentType) > 0 {
				w.Header().Set("Content-Type", contentType)
			}
			if len(cacheControl) > 0 {
				w.Header().Set("Cache-Control", cacheControl)
			}
			w.Write(body)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve("/", "text/html; charset=utf-8", "", []byte("<html></html>"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	assert.Equal(t, cacheLanding, rec.Header().Get("Cache-Control"))

	rec = serve("/api/prompts", "application/json", "", []byte("{}"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	assert.Equal(t, cacheDefault, rec.Header().Get("Cache-Control"))

	rec = serve("/logo.png", "image/png", "", []byte{0x89})
	assert.Empty(t, rec.Header().Get("Vary"))

	// sniffed content type
	rec = serve("/terms", "", "", []byte("<!DOCTYPE html><html></html>"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	assert.Equal(t, cacheLegal, rec.Header().Get("Cache-Control"))

	rec = serve("/sitemap.xml", "application/xml", "public, max-age=3600", []byte("<urlset/>"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = serve("/admin", "text/html", "", []byte("<html></html>"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	rec = serve("/api/me", "application/json", "private, no-store", []byte("{}"))
	assert.Equal(t, "private, no-store", rec.Header().Get("Cache-Control"))

	rec = serve("/blogs", "text/html", "max-age=5", []byte("<html></html>"))
	assert.Equal(t, cacheBlogIndex, rec.Header().Get("Cache-Control"))

	rec = serve("/api/admin/prompts", "application/json", "", []byte("{}"))
	assert.Equal(t, cachePrivate, rec.Header().Get("Cache-Control"))
}

func TestOptimizationMiddlewareErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		h := OptimizationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))
		for _, path := range []string{"/", "/directory", "/api/directory/boot", "/api/admin/prompts"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, status, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), "%s %d", path, status)
		}
	}
}

func TestOptimizationMiddlewareVary(t *testing.T) {
	h := OptimizationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Add("Vary", "Authorization, Cookie")
		w.Header().Add("Vary", "accept-encoding")
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"Authorization, Cookie", "accept-encoding"}, rec.Header().Values("Vary"))
}
