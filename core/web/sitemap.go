package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/sitemap"
)

func (web *Web) handleSitemap(router *mux.Router) {
	logger.Default().Debugln("  handle sitemap route: /sitemap.xml GET")
	router.HandleFunc("/sitemap.xml", web.sitemap).Methods(http.MethodGet, http.MethodHead)
}

// sitemap renders the sitemap. Failing sources are logged and left out.
func (web *Web) sitemap(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	prompts, err := web.service.SitemapPrompts(r.Context())
	if err != nil {
		rlog.WithError(err).Errorln("Error 5130: cannot fetch prompts for sitemap")
		prompts = nil
	}
	blogs, err := web.service.Blogs(r.Context())
	if err != nil {
		rlog.WithError(err).Errorln("Error 5131: cannot fetch blogs for sitemap")
		blogs = nil
	}

	siteURL := sitemap.SiteURL(web.siteURL, requestOrigin(r))
	data, err := sitemap.Render(sitemap.Items(siteURL, prompts, blogs))
	if err != nil {
		rlog.WithError(err).Errorln("Error 5132: cannot render sitemap")
		http.Error(w, "Error 5132", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", sitemap.ContentType)
	w.Header().Set("Cache-Control", sitemap.CacheControl)
	w.Write(data)
}
