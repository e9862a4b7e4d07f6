package web

import (
	"net/http"
	"strings"
)

// the Cache-Control values of the optimization middleware
const (
	cacheLanding   = "public, max-age=3600, s-maxage=3600, stale-while-revalidate=86400"
	cacheDetail    = "public, max-age=3600, s-maxage=7200, stale-while-revalidate=604800"
	cacheBlogIndex = "public, max-age=1800, s-maxage=1800, stale-while-revalidate=86400"
	cacheLegal     = "public, max-age=604800, s-maxage=604800, immutable"
	cacheDefault   = "public, max-age=1800, s-maxage=3600, stale-while-revalidate=86400"
	cachePrivate   = "private, no-store"
)

var compressibleTypes = []string{"text/", "application/json", "application/javascript", "application/xml"}

var privatePrefixes = []string{"/admin", "/profile", "/submit"}

// CacheControlFor returns the Cache-Control value for a path, or "" if the
// path gets none.
func CacheControlFor(path string) string {
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(path, prefix) {
			return ""
		}
	}
	switch {
	case path == "/" || path == "/directory":
		return cacheLanding
	case strings.HasPrefix(path, "/blogs/") || strings.HasPrefix(path, "/directory/"):
		return cacheDetail
	case path == "/blogs":
		return cacheBlogIndex
	case path == "/privacy" || path == "/terms":
		return cacheLegal
	case strings.HasPrefix(path, "/sitemap.xml"):
		return ""
	}
	return cacheDefault
}

// compressible is true for content types which benefit from compression
func compressible(contentType string) bool {
	for _, t := range compressibleTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// OptimizationMiddleware decorates every response with Vary and Cache-Control
// headers. A handler which marks its response private or no-store keeps its
// own Cache-Control. Error responses are never stored, admin API answers are
// private.
func OptimizationMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(&optimizedWriter{ResponseWriter: w, path: r.URL.Path}, r)
	})
}

type optimizedWriter struct {
	http.ResponseWriter
	path        string
	wroteHeader bool
}

func (w *optimizedWriter) decorate(status int) {
	header := w.Header()
	if compressible(header.Get("Content-Type")) && !varies(header, "Accept-Encoding") {
		header.Add("Vary", "Accept-Encoding")
	}
	current := header.Get("Cache-Control")
	if strings.Contains(current, "private") || strings.Contains(current, "no-store") {
		return
	}
	switch {
	case status >= http.StatusBadRequest:
		// errors and outages must not outlive the request in shared caches
		header.Set("Cache-Control", "no-store")
	case strings.HasPrefix(w.path, "/api/admin"):
		header.Set("Cache-Control", cachePrivate)
	default:
		if value := CacheControlFor(w.path); len(value) > 0 {
			header.Set("Cache-Control", value)
		}
	}
}

// varies is true if the Vary header already names the request header
func varies(header http.Header, name string) bool {
	for _, value := range header.Values("Vary") {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), name) {
				return true
			}
		}
	}
	return false
}

func (w *optimizedWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.decorate(status)
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *optimizedWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		if len(w.Header().Get("Content-Type")) == 0 {
			w.Header().Set("Content-Type", http.DetectContentType(data))
		}
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// Flush implements http.Flusher
func (w *optimizedWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
