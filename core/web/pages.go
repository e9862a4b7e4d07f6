package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/browse"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/schema"
)

//go:embed templates
var templatesFS embed.FS

var routeLabels = map[string]string{
	"/":          "Home",
	"/directory": "Directory",
	"/subscribe": "Subscribe",
	"/submit":    "Submit",
	"/profile":   "Profile",
	"/admin":     "Admin",
}

var errorMessages = map[string]string{
	"unauthorized": "You are not authorized to view that page.",
}

type pages struct {
	templates map[string]*template.Template
}

// mustParsePages parses every page template together with the layout
func mustParsePages() *pages {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("January 2, 2006") },
		"join": strings.Join,
	}
	names, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		panic(err)
	}
	p := &pages{templates: map[string]*template.Template{}}
	for _, name := range names {
		base := strings.TrimPrefix(name, "templates/")
		if base == "layout.html" {
			continue
		}
		p.templates[strings.TrimSuffix(base, ".html")] = template.Must(
			template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", name))
	}
	return p
}

type navLink struct {
	Path, Label string
	Active      bool
}

type pageData struct {
	Title       string
	Description string
	Canonical   string
	Me          Me
	Nav         []navLink
	SignInURL   string
	Error       string
	Notice      string
	Data        interface{}
}

func (web *Web) newPageData(r *http.Request, title string, data interface{}) pageData {
	me := newMe(authorization(r))
	pd := pageData{
		Title:     title,
		Canonical: strings.TrimSuffix(web.baseURL(r), "/") + r.URL.Path,
		Me:        me,
		SignInURL: signInRedirect(web.signInURL, r),
		Error:     errorMessages[r.URL.Query().Get("error")],
		Data:      data,
	}
	for _, route := range me.VisibleRoutes {
		pd.Nav = append(pd.Nav, navLink{
			Path:   route,
			Label:  routeLabels[route],
			Active: route == r.URL.Path,
		})
	}
	return pd
}

func (web *Web) baseURL(r *http.Request) string {
	if len(web.siteURL) > 0 {
		return web.siteURL
	}
	return requestOrigin(r)
}

func (web *Web) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := web.pages.templates[name]
	if !ok {
		logger.FromContext(r.Context()).Errorln("Error 5140: no template", name)
		http.Error(w, "Error 5140", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 5141: cannot render", name)
		http.Error(w, "Error 5141", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// pages render the visitor's identity
	w.Header().Add("Vary", "Authorization, Cookie")
	if authorization(r).IsSignedIn() {
		w.Header().Set("Cache-Control", cachePrivate)
	}
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (web *Web) notFound(w http.ResponseWriter, r *http.Request) {
	web.render(w, r, http.StatusNotFound, "notfound", web.newPageData(r, "Not found", nil))
}

// pageError renders the not found page for ErrNotFound and logs everything else
func (web *Web) pageError(w http.ResponseWriter, r *http.Request, err error, tag string) {
	if errors.Is(err, directory.ErrNotFound) {
		web.notFound(w, r)
		return
	}
	logger.FromContext(r.Context()).WithError(err).Errorln(tag + ": " + r.URL.Path)
	pd := web.newPageData(r, "Something went wrong", nil)
	pd.Error = "Something went wrong. Please try again later."
	web.render(w, r, http.StatusInternalServerError, "notfound", pd)
}

func (web *Web) handlePages(router *mux.Router) {
	rlog := logger.Default()
	rlog.Debugln("pages")
	router.NotFoundHandler = http.HandlerFunc(web.notFound)

	for path, handler := range map[string]http.HandlerFunc{
		"/":               web.homePage,
		"/directory":      web.directoryPage,
		"/directory/{id}": web.promptPage,
		"/blogs":          web.blogsPage,
		"/blogs/{slug}":   web.blogPage,
		"/submit":         web.submitPage,
		"/profile":        web.profilePage,
		"/admin":          web.adminPage,
		"/privacy":        web.staticPage("privacy", "Privacy policy"),
		"/terms":          web.staticPage("terms", "Terms of use"),
		"/subscribe":      web.staticPage("subscribe", "Subscribe"),
	} {
		rlog.Debugln("  handle page:", path, "GET")
		router.HandleFunc(path, handler).Methods(http.MethodGet, http.MethodHead)
	}
	rlog.Debugln("  handle page: /submit POST")
	router.Handle("/submit", web.limiter.Middleware(http.HandlerFunc(web.submitForm))).Methods(http.MethodPost)
	rlog.Debugln("  handle page: /admin/prompts/{id}/{action} POST")
	router.HandleFunc("/admin/prompts/{id}/{action}", web.adminAction).Methods(http.MethodPost)
}

func (web *Web) staticPage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		web.render(w, r, http.StatusOK, name, web.newPageData(r, title, nil))
	}
}

type homeView struct {
	Categories []directory.Category
	Featured   []directory.Prompt
	Recent     []directory.PromptSummary
}

func (web *Web) homePage(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	view := homeView{}
	if boot, source, err := web.hydrator.Boot(r.Context()); err != nil {
		rlog.WithError(err).Warningln("home page without boot data")
	} else {
		web.metrics.BootServed(source)
		view.Categories = boot.Categories
		view.Recent = boot.RecentPrompts
	}
	featured, err := web.service.FeaturedPrompts(r.Context())
	if err != nil {
		rlog.WithError(err).Warningln("home page without featured prompts")
	}
	view.Featured = featured
	pd := web.newPageData(r, "Prompts for ministry", view)
	pd.Description = "A library of prompts for church ministry, shared and reviewed by the community."
	web.render(w, r, http.StatusOK, "home", pd)
}

type categoryLink struct {
	Category directory.Category
	Selected bool
	URL      string
}

type sortLink struct {
	Label, URL string
	Active     bool
}

type pageLink struct {
	Number  int
	URL     string
	Current bool
}

type directoryView struct {
	State       browse.ViewState
	Categories  []categoryLink
	Sorts       []sortLink
	SortLabel   string
	HasFilters  bool
	ClearURL    string
	ShowNewest  bool
	Newest      []directory.PromptSummary
	Unavailable bool
	Page        *directory.Page
	Pages       []pageLink
	PrevURL     string
	NextURL     string
}

func (web *Web) directoryPage(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	state := browse.ParseViewState(r.URL.Query())

	page, _, err := web.hydrator.Listing(r.Context(), state)
	if err == nil && state.Page > browse.DisplayTotalPages(page) {
		state.Page = browse.DisplayTotalPages(page)
		http.Redirect(w, r, state.URL("/directory"), http.StatusFound)
		return
	}

	view := directoryView{
		State:      state,
		SortLabel:  state.SortLabel(),
		HasFilters: state.HasFilters(),
		ClearURL:   state.ClearFilters().URL("/directory"),
		ShowNewest: state.ShowNewest(),
		Page:       page,
	}
	if err != nil {
		rlog.WithError(err).Errorln("Error 5142: directory listing unavailable")
		view.Unavailable = true
	}

	if boot, source, err := web.hydrator.Boot(r.Context()); err != nil {
		rlog.WithError(err).Warningln("directory page without boot data")
	} else {
		web.metrics.BootServed(source)
		for _, c := range boot.Categories {
			view.Categories = append(view.Categories, categoryLink{
				Category: c,
				Selected: state.HasCategory(c.CategoryID),
				URL:      state.ToggleCategory(c.CategoryID).URL("/directory"),
			})
		}
		view.Newest = boot.RecentPrompts
	}
	for _, option := range browse.SortOptions {
		view.Sorts = append(view.Sorts, sortLink{
			Label:  option.Label,
			URL:    state.WithSort(option.Value).URL("/directory"),
			Active: option.Value == state.Sort,
		})
	}
	if page != nil {
		total := browse.DisplayTotalPages(page)
		for _, n := range browse.PageWindow(state.Page, total) {
			view.Pages = append(view.Pages, pageLink{
				Number:  n,
				URL:     state.GoToPage(n, total).URL("/directory"),
				Current: n == state.Page,
			})
		}
		if state.Page > 1 {
			view.PrevURL = state.GoToPage(state.Page-1, total).URL("/directory")
		}
		if state.Page < total {
			view.NextURL = state.GoToPage(state.Page+1, total).URL("/directory")
		}
	}

	status := http.StatusOK
	if view.Unavailable {
		status = http.StatusServiceUnavailable
	}
	pd := web.newPageData(r, "Prompt directory", view)
	pd.Description = "Browse approved prompts by category, search and popularity."
	web.render(w, r, status, "directory", pd)
}

type promptView struct {
	Prompt   *directory.Prompt
	Category string
}

func (web *Web) promptPage(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromVars(r)
	if err != nil {
		web.notFound(w, r)
		return
	}
	p, err := web.service.Prompt(r.Context(), id, access.AuthorizationFromContext(r.Context()))
	if err != nil {
		web.pageError(w, r, err, "Error 5143")
		return
	}
	view := promptView{Prompt: p, Category: p.Category}
	if categories, err := web.service.Store().ListCategories(r.Context()); err == nil {
		for _, c := range categories {
			if c.CategoryID == p.Category {
				view.Category = c.Name
			}
		}
	}
	if p.Status != directory.StatusApproved {
		w.Header().Set("Cache-Control", cachePrivate)
	}
	pd := web.newPageData(r, p.Title, view)
	pd.Description = p.Excerpt
	web.render(w, r, http.StatusOK, "prompt", pd)
}

func (web *Web) blogsPage(w http.ResponseWriter, r *http.Request) {
	blogs, err := web.service.Blogs(r.Context())
	if err != nil {
		web.pageError(w, r, err, "Error 5144")
		return
	}
	web.render(w, r, http.StatusOK, "blogs", web.newPageData(r, "Blog", blogs))
}

func (web *Web) blogPage(w http.ResponseWriter, r *http.Request) {
	blog, err := web.service.Blog(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		web.pageError(w, r, err, "Error 5145")
		return
	}
	pd := web.newPageData(r, blog.Title, blog)
	pd.Description = blog.Excerpt
	web.render(w, r, http.StatusOK, "blog", pd)
}

type submitView struct {
	Categories []directory.Category
	Submission directory.Submission
	Tags       string
	Details    []string
}

func (web *Web) renderSubmit(w http.ResponseWriter, r *http.Request, status int, view submitView, message string) {
	categories, err := web.service.Store().ListCategories(r.Context())
	if err != nil {
		web.pageError(w, r, err, "Error 5146")
		return
	}
	view.Categories = categories
	pd := web.newPageData(r, "Submit a prompt", view)
	pd.Error = message
	web.render(w, r, status, "submit", pd)
}

func (web *Web) submitPage(w http.ResponseWriter, r *http.Request) {
	web.renderSubmit(w, r, http.StatusOK, submitView{}, "")
}

// splitTags splits a comma separated tag list
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); len(t) > 0 {
			tags = append(tags, t)
		}
	}
	return tags
}

func (web *Web) submitForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "cannot parse form", http.StatusBadRequest)
		return
	}
	view := submitView{
		Submission: directory.Submission{
			Title:    strings.TrimSpace(r.PostFormValue("title")),
			Content:  strings.TrimSpace(r.PostFormValue("content")),
			Excerpt:  strings.TrimSpace(r.PostFormValue("excerpt")),
			Category: r.PostFormValue("category"),
			Tags:     splitTags(r.PostFormValue("tags")),
		},
		Tags: r.PostFormValue("tags"),
	}

	body, _ := json.Marshal(view.Submission)
	if err := web.validator.ValidateBytes(body, schema.PromptSubmission); err != nil {
		var validationErr *schema.ValidationError
		if errors.As(err, &validationErr) {
			view.Details = validationErr.Details
		}
		web.renderSubmit(w, r, http.StatusBadRequest, view, "Please check your submission.")
		return
	}

	_, err := web.service.Submit(r.Context(), access.AuthorizationFromContext(r.Context()), view.Submission)
	if err != nil {
		if statusOf(err) == http.StatusBadRequest {
			web.renderSubmit(w, r, http.StatusBadRequest, view, err.Error())
			return
		}
		web.pageError(w, r, err, "Error 5147")
		return
	}
	web.metrics.Submitted()
	http.Redirect(w, r, "/profile?submitted=1", http.StatusSeeOther)
}

type profileView struct {
	User    *directory.User
	Prompts *directory.Page
}

func (web *Web) profilePage(w http.ResponseWriter, r *http.Request) {
	auth := access.AuthorizationFromContext(r.Context())
	view := profileView{}
	user, err := web.service.User(r.Context(), auth.Identity)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		web.pageError(w, r, err, "Error 5148")
		return
	}
	view.User = user
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	view.Prompts, err = web.service.ListByAuthor(r.Context(), auth.Identity, directory.Query{Page: page})
	if err != nil {
		web.pageError(w, r, err, "Error 5148")
		return
	}
	pd := web.newPageData(r, "Your profile", view)
	if r.URL.Query().Get("submitted") == "1" {
		pd.Notice = "Thank you! Your prompt was submitted for review."
	}
	web.render(w, r, http.StatusOK, "profile", pd)
}

type adminView struct {
	Status  directory.Status
	Prompts *directory.Page
}

func (web *Web) adminPage(w http.ResponseWriter, r *http.Request) {
	status := directory.Status(r.URL.Query().Get("status"))
	if len(status) == 0 {
		status = directory.StatusPending
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	prompts, err := web.service.ListPending(r.Context(), directory.Query{Status: status, Page: page})
	if err != nil {
		web.pageError(w, r, err, "Error 5149")
		return
	}
	pd := web.newPageData(r, "Moderation", adminView{Status: status, Prompts: prompts})
	switch r.URL.Query().Get("done") {
	case "approve":
		pd.Notice = "The prompt was approved."
	case "reject":
		pd.Notice = "The prompt was rejected."
	case "feature", "unfeature":
		pd.Notice = "The prompt was updated."
	case "delete":
		pd.Notice = "The prompt was deleted."
	}
	web.render(w, r, http.StatusOK, "admin", pd)
}

func (web *Web) adminAction(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromVars(r)
	if err != nil {
		web.notFound(w, r)
		return
	}
	ctx := r.Context()
	auth := access.AuthorizationFromContext(ctx)
	action := mux.Vars(r)["action"]
	switch action {
	case "approve":
		_, err = web.service.Moderate(ctx, id, directory.StatusApproved, auth)
		if err == nil {
			web.metrics.Moderated(directory.StatusApproved)
		}
	case "reject":
		_, err = web.service.Moderate(ctx, id, directory.StatusRejected, auth)
		if err == nil {
			web.metrics.Moderated(directory.StatusRejected)
		}
	case "feature", "unfeature":
		_, err = web.service.SetFeatured(ctx, id, action == "feature")
	case "delete":
		err = web.service.Delete(ctx, id, auth)
	default:
		web.notFound(w, r)
		return
	}
	if err != nil {
		web.pageError(w, r, err, "Error 5150")
		return
	}
	http.Redirect(w, r, "/admin?done="+action, http.StatusSeeOther)
}
