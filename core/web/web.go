// Package web is the HTTP surface of promptlib: the JSON API, the server
// rendered pages, the sitemap and the middlewares around them.
//
// Use New to add all routes to a mux router, then serve Handler().
package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/browse"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/schema"
)

// Builder is a builder helper for Web
type Builder struct {
	// Service is the directory service. This is mandatory.
	Service *directory.Service
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Hydrator resolves boot data and listings. Defaults to a hydrator on Service without cache.
	Hydrator *browse.Hydrator
	// Validator validates request bodies. Defaults to the embedded schemas.
	Validator *schema.Validator
	// SiteURL is the public site url for the sitemap. Defaults to the request origin.
	SiteURL string
	// SignInURL is where anonymous visitors of protected pages are sent. Defaults to /sign-in.
	SignInURL string
	// SubmitRatePerMinute limits submissions per identity. Zero means 5 per minute.
	SubmitRatePerMinute int
	// Metrics collects request metrics. Defaults to a new Metrics.
	Metrics *Metrics
	// Authentication are the middlewares which put the authorization into the
	// request context, in order. Typically the backdoor and the jwt middleware.
	Authentication []mux.MiddlewareFunc
}

// Web holds the routes of promptlib
type Web struct {
	service   *directory.Service
	router    *mux.Router
	hydrator  *browse.Hydrator
	validator *schema.Validator
	siteURL   string
	signInURL string
	limiter   *RateLimiter
	metrics   *Metrics
	pages     *pages
}

// New adds all routes to the router of the builder
func New(wb *Builder) *Web {
	if wb.Service == nil {
		panic("Service is missing")
	}
	if wb.Router == nil {
		panic("Router is missing")
	}

	web := &Web{
		service:   wb.Service,
		router:    wb.Router,
		hydrator:  wb.Hydrator,
		validator: wb.Validator,
		siteURL:   wb.SiteURL,
		metrics:   wb.Metrics,
		pages:     mustParsePages(),
	}
	if web.hydrator == nil {
		web.hydrator = browse.NewHydrator(wb.Service, nil)
	}
	if web.validator == nil {
		web.validator = schema.MustDefault()
	}
	if web.metrics == nil {
		web.metrics = NewMetrics()
	}
	rate := wb.SubmitRatePerMinute
	if rate <= 0 {
		rate = 5
	}
	web.limiter = NewRateLimiter(rate)
	web.signInURL = wb.SignInURL
	if len(web.signInURL) == 0 {
		web.signInURL = "/sign-in"
	}

	logger.AddRequestID(web.router)
	web.router.Use(web.metrics.Middleware)
	for _, mw := range wb.Authentication {
		web.router.Use(mw)
	}
	web.router.Use(NewRouteGuard(&RouteGuardBuilder{SignInURL: web.signInURL, Roles: wb.Service}))

	web.handleVersion(web.router)
	web.handleHealth(web.router)
	web.metrics.handleRoute(web.router)
	web.handleSitemap(web.router)
	web.handleAPI(web.router)
	web.handlePages(web.router)
	return web
}

// Handler returns the router wrapped in the compression and optimization
// middlewares. The optimization middleware runs outermost, so it decorates
// every response, including those of unknown routes.
func (web *Web) Handler() http.Handler {
	return OptimizationMiddleware(handlers.CompressHandler(web.router))
}

// Metrics returns the request metrics
func (web *Web) Metrics() *Metrics {
	return web.metrics
}

// writeJSON answers with the json encoding of value
func writeJSON(w http.ResponseWriter, r *http.Request, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 5101: cannot marshal response")
		http.Error(w, "Error 5101", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// statusOf maps directory errors to http status codes. Unknown errors are internal.
func statusOf(err error) int {
	var validationErr *schema.ValidationError
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, directory.ErrInvalidInput),
		errors.Is(err, directory.ErrUnknownCategory),
		errors.Is(err, directory.ErrInvalidStatus),
		errors.As(err, &validationErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the status for err. Internal errors are logged with
// the tag and the client only sees the tag.
func writeError(w http.ResponseWriter, r *http.Request, err error, tag string) {
	status := statusOf(err)
	switch status {
	case http.StatusNotFound:
		http.Error(w, "not found", status)
	case http.StatusInternalServerError:
		logger.FromContext(r.Context()).WithError(err).Errorln(tag + ": " + r.Method + " " + r.URL.Path)
		http.Error(w, tag, status)
	default:
		http.Error(w, err.Error(), status)
	}
}

// requestOrigin returns scheme and host of the request as seen by the client
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); len(proto) > 0 {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); len(fwd) > 0 {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}

// authorization returns the authorization of the request, or an anonymous one
func authorization(r *http.Request) *access.Authorization {
	if auth := access.AuthorizationFromContext(r.Context()); auth != nil {
		return auth
	}
	return &access.Authorization{}
}
