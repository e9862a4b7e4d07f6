package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/logger"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

func (web *Web) handleVersion(router *mux.Router) {
	logger.Default().Debugln("version")
	logger.Default().Debugln("  handle version route: /version GET")
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, r, http.StatusOK, map[string]string{"version": Version})
	}).Methods(http.MethodOptions, http.MethodGet)
}

// handleHealth answers 200 if the categories can be read, 503 otherwise
func (web *Web) handleHealth(router *mux.Router) {
	logger.Default().Debugln("  handle health route: /healthz GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if _, err := web.service.Store().ListCategories(r.Context()); err != nil {
			logger.FromContext(r.Context()).WithError(err).Errorln("Error 5120: health check failed")
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodOptions, http.MethodGet)
}
