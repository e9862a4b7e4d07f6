package web

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/browse"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/schema"
)

// maxBodySize is the largest accepted request body
const maxBodySize = 64 << 10

func (web *Web) handleAPI(router *mux.Router) {
	rlog := logger.Default()
	rlog.Debugln("api")
	api := router.PathPrefix("/api").Subrouter()

	rlog.Debugln("  handle route: /api/directory/boot GET")
	api.HandleFunc("/directory/boot", web.getBoot).Methods(http.MethodOptions, http.MethodGet)

	rlog.Debugln("  handle route: /api/prompts GET,POST")
	api.HandleFunc("/prompts", web.listPrompts).Methods(http.MethodOptions, http.MethodGet)
	api.Handle("/prompts", web.limiter.Middleware(http.HandlerFunc(web.postPrompt))).Methods(http.MethodPost)

	rlog.Debugln("  handle route: /api/prompts/{id} GET")
	api.HandleFunc("/prompts/{id}", web.getPrompt).Methods(http.MethodOptions, http.MethodGet)
	rlog.Debugln("  handle route: /api/prompts/{id}/usage POST")
	api.HandleFunc("/prompts/{id}/usage", web.countPrompt(directory.CounterUsage)).Methods(http.MethodPost)
	rlog.Debugln("  handle route: /api/prompts/{id}/execution POST")
	api.HandleFunc("/prompts/{id}/execution", web.countPrompt(directory.CounterExecution)).Methods(http.MethodPost)

	rlog.Debugln("  handle route: /api/me GET")
	api.HandleFunc("/me", web.getMe).Methods(http.MethodOptions, http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdmin)
	rlog.Debugln("  handle route: /api/admin/prompts GET")
	admin.HandleFunc("/prompts", web.listModeration).Methods(http.MethodGet)
	rlog.Debugln("  handle route: /api/admin/prompts/{id}/status PUT")
	admin.HandleFunc("/prompts/{id}/status", web.putStatus).Methods(http.MethodPut)
	rlog.Debugln("  handle route: /api/admin/prompts/{id}/featured PUT")
	admin.HandleFunc("/prompts/{id}/featured", web.putFeatured).Methods(http.MethodPut)
	rlog.Debugln("  handle route: /api/admin/prompts/{id} DELETE")
	admin.HandleFunc("/prompts/{id}", web.deletePrompt).Methods(http.MethodDelete)
	rlog.Debugln("  handle route: /api/admin/users/{identity}/role PUT")
	admin.HandleFunc("/users/{identity}/role", web.putRole).Methods(http.MethodPut)
}

// requireAdmin answers 401 for anonymous and 403 for non admin requests
func requireAdmin(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := access.AuthorizationFromContext(r.Context())
		if !auth.IsSignedIn() {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		if !auth.HasRole(access.RoleAdmin) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (web *Web) getBoot(w http.ResponseWriter, r *http.Request) {
	boot, source, err := web.hydrator.Boot(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 5102: no boot data")
		http.Error(w, "Error 5102", http.StatusServiceUnavailable)
		return
	}
	web.metrics.BootServed(source)

	etag, err := bootEtag(boot)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 5101: cannot marshal boot data")
		http.Error(w, "Error 5101", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Etag", etag)
	w.Header().Set("X-Boot-Source", string(source))
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, r, http.StatusOK, boot)
}

// bootEtag hashes the categories and recent prompts. generatedAt changes with
// every aggregation and is left out.
func bootEtag(boot *directory.BootData) (string, error) {
	content, err := json.Marshal(struct {
		Categories    []directory.Category      `json:"categories"`
		RecentPrompts []directory.PromptSummary `json:"recentPrompts"`
	}{boot.Categories, boot.RecentPrompts})
	if err != nil {
		return "", err
	}
	return bytesToEtag(content), nil
}

// parseQuery reads category, q, sort, limit and page. The sort accepts the
// visitor value popular as well.
func parseQuery(r *http.Request) (directory.Query, error) {
	values := r.URL.Query()
	q := directory.Query{Search: values.Get("q")}
	for _, c := range strings.Split(values.Get("category"), ",") {
		if c = strings.TrimSpace(c); len(c) > 0 {
			q.Category = c
			break
		}
	}
	sort := values.Get("sort")
	if sort == browse.SortPopular {
		sort = string(directory.SortUsage)
	}
	order, err := directory.ParseSortOrder(sort)
	if err != nil {
		return q, err
	}
	q.Sort = order
	if s := values.Get("status"); len(s) > 0 {
		q.Status = directory.Status(s)
	}
	for _, p := range []struct {
		name  string
		value *int
	}{{"limit", &q.Limit}, {"page", &q.Page}} {
		s := values.Get(p.name)
		if len(s) == 0 {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, invalidParameter(p.name, s)
		}
		*p.value = n
	}
	return q, nil
}

func invalidParameter(name, value string) error {
	return fmt.Errorf("%w: parameter '%s': invalid value '%s'", directory.ErrInvalidInput, name, value)
}

func writePage(w http.ResponseWriter, r *http.Request, page *directory.Page) {
	w.Header().Set("Pagination-Limit", strconv.Itoa(page.Limit))
	w.Header().Set("Pagination-Total-Count", strconv.Itoa(page.TotalCount))
	w.Header().Set("Pagination-Page-Count", strconv.Itoa(page.TotalPages))
	w.Header().Set("Pagination-Current-Page", strconv.Itoa(page.Page))
	if page.Prompts == nil {
		page.Prompts = []directory.Prompt{}
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (web *Web) listPrompts(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err, "Error 5103")
		return
	}
	page, err := web.service.ListApproved(r.Context(), q)
	if err != nil {
		writeError(w, r, err, "Error 5103")
		return
	}
	writePage(w, r, page)
}

func uuidFromVars(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func promptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidFromVars(r)
	if err != nil {
		http.Error(w, "invalid uuid", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (web *Web) getPrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}
	p, err := web.service.Prompt(r.Context(), id, access.AuthorizationFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, "Error 5104")
		return
	}
	if p.Status != directory.StatusApproved {
		w.Header().Set("Cache-Control", cachePrivate)
	}
	writeJSON(w, r, http.StatusOK, p)
}

// readBody reads the request body and validates it against the schema
func (web *Web) readBody(w http.ResponseWriter, r *http.Request, schemaID string, value interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return false
	}
	if err := web.validator.ValidateBytes(body, schemaID); err != nil {
		writeError(w, r, err, "Error 5105")
		return false
	}
	if err := json.Unmarshal(body, value); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (web *Web) postPrompt(w http.ResponseWriter, r *http.Request) {
	auth := access.AuthorizationFromContext(r.Context())
	if !auth.IsSignedIn() {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}
	var sub directory.Submission
	if !web.readBody(w, r, schema.PromptSubmission, &sub) {
		return
	}
	p, err := web.service.Submit(r.Context(), auth, sub)
	if err != nil {
		writeError(w, r, err, "Error 5106")
		return
	}
	web.metrics.Submitted()
	w.Header().Set("Location", "/api/prompts/"+p.ID.String())
	w.Header().Set("Cache-Control", cachePrivate)
	writeJSON(w, r, http.StatusCreated, p)
}

func (web *Web) countPrompt(counter directory.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := promptID(w, r)
		if !ok {
			return
		}
		var err error
		if counter == directory.CounterUsage {
			err = web.service.RecordUsage(r.Context(), id)
		} else {
			err = web.service.RecordExecution(r.Context(), id)
		}
		if err != nil {
			writeError(w, r, err, "Error 5107")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Me describes the requesting visitor
type Me struct {
	Identity      string                `json:"identity,omitempty"`
	Email         string                `json:"email,omitempty"`
	Name          string                `json:"name,omitempty"`
	Role          string                `json:"role"`
	DisplayName   string                `json:"displayName"`
	Badge         string                `json:"badge"`
	VisibleRoutes []string              `json:"visibleRoutes"`
	AdminFeatures []access.AdminFeature `json:"adminFeatures"`
}

func newMe(auth *access.Authorization) Me {
	if auth == nil {
		auth = &access.Authorization{}
	}
	role := auth.Role()
	me := Me{
		Identity:      auth.Identity,
		Role:          role,
		DisplayName:   access.RoleDisplayName(role),
		Badge:         access.RoleBadgeVariant(role),
		VisibleRoutes: access.VisibleRoutes(role),
		AdminFeatures: []access.AdminFeature{},
	}
	me.Email, _ = auth.Property("email")
	me.Name, _ = auth.Property("name")
	for _, f := range access.AdminFeatures {
		if access.CanAccessAdminFeature(role, f) {
			me.AdminFeatures = append(me.AdminFeatures, f)
		}
	}
	return me
}

func (web *Web) getMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cachePrivate)
	writeJSON(w, r, http.StatusOK, newMe(authorization(r)))
}

func (web *Web) listModeration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cachePrivate)
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err, "Error 5108")
		return
	}
	if len(r.URL.Query().Get("sort")) == 0 {
		q.Sort = directory.SortRecent
	}
	page, err := web.service.ListPending(r.Context(), q)
	if err != nil {
		writeError(w, r, err, "Error 5108")
		return
	}
	writePage(w, r, page)
}

func (web *Web) putStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status directory.Status `json:"status"`
	}
	if !web.readBody(w, r, schema.StatusUpdate, &body) {
		return
	}
	p, err := web.service.Moderate(r.Context(), id, body.Status, access.AuthorizationFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, "Error 5109")
		return
	}
	web.metrics.Moderated(body.Status)
	w.Header().Set("Cache-Control", cachePrivate)
	writeJSON(w, r, http.StatusOK, p)
}

func (web *Web) putFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}
	var body struct {
		Featured bool `json:"featured"`
	}
	if !web.readBody(w, r, schema.FeaturedUpdate, &body) {
		return
	}
	p, err := web.service.SetFeatured(r.Context(), id, body.Featured)
	if err != nil {
		writeError(w, r, err, "Error 5110")
		return
	}
	w.Header().Set("Cache-Control", cachePrivate)
	writeJSON(w, r, http.StatusOK, p)
}

func (web *Web) deletePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}
	if err := web.service.Delete(r.Context(), id, access.AuthorizationFromContext(r.Context())); err != nil {
		writeError(w, r, err, "Error 5111")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (web *Web) putRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if !web.readBody(w, r, schema.RoleUpdate, &body) {
		return
	}
	identity := mux.Vars(r)["identity"]
	if err := web.service.SetUserRole(r.Context(), identity, body.Role); err != nil {
		writeError(w, r, err, "Error 5112")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bytesToEtag returns a strong etag for data
func bytesToEtag(data []byte) string {
	sum := sha256.Sum256(data)
	return "\"" + hex.EncodeToString(sum[:16]) + "\""
}

func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.TrimPrefix(strings.Trim(s, " "), "W/")
		if strings.Trim(s, "\"") == strings.Trim(etag, "\"") {
			return true
		}
	}
	return false
}
