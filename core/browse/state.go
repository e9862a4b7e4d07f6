// Package browse holds the directory browsing controller: the view state
// mirrored in the URL query, pagination windows, and the hydration of boot
// data from live, cached and initial sources.
package browse

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/relabs-tech/promptlib/core/directory"
)

// PageSize is the number of prompts per directory page
const PageSize = 50

// the sort values offered to visitors. The empty sort is the default heuristic.
const (
	SortPopular  = "popular"
	SortRecent   = "recent"
	SortFeatured = "featured"
)

// SortOptions lists the sort values with their labels, in display order
var SortOptions = []struct{ Value, Label string }{
	{"", "Default"},
	{SortPopular, "Popularity"},
	{SortRecent, "Recent"},
	{SortFeatured, "Featured"},
}

// ViewState is the state of the directory view. It round-trips through the
// URL query string, so a reload or a shared link shows the same view.
type ViewState struct {
	Categories []string
	Search     string
	Sort       string
	Page       int
}

// ParseViewState reads the view state from a URL query. Invalid pages are ignored.
func ParseViewState(values url.Values) ViewState {
	s := ViewState{Page: 1}
	if c := values.Get("category"); len(c) > 0 {
		for _, id := range strings.Split(c, ",") {
			if id = strings.TrimSpace(id); len(id) > 0 {
				s.Categories = append(s.Categories, id)
			}
		}
	}
	s.Search = values.Get("q")
	s.Sort = values.Get("sort")
	if p, err := strconv.Atoi(values.Get("page")); err == nil && p > 0 {
		s.Page = p
	}
	return s
}

// QueryString encodes the view state in the order category, q, sort, page.
// Empty values are left out, the page only appears beyond the first one.
func (s ViewState) QueryString() string {
	var params []string
	if len(s.Categories) > 0 {
		params = append(params, "category="+url.QueryEscape(strings.Join(s.Categories, ",")))
	}
	if len(s.Search) > 0 {
		params = append(params, "q="+url.QueryEscape(s.Search))
	}
	if len(s.Sort) > 0 {
		params = append(params, "sort="+url.QueryEscape(s.Sort))
	}
	if s.Page > 1 {
		params = append(params, "page="+strconv.Itoa(s.Page))
	}
	return strings.Join(params, "&")
}

// URL returns path with the encoded view state
func (s ViewState) URL(path string) string {
	if q := s.QueryString(); len(q) > 0 {
		return path + "?" + q
	}
	return path
}

// HasCategory returns true if the category is selected
func (s ViewState) HasCategory(categoryID string) bool {
	for _, c := range s.Categories {
		if c == categoryID {
			return true
		}
	}
	return false
}

// ToggleCategory selects or deselects a category and resets the page
func (s ViewState) ToggleCategory(categoryID string) ViewState {
	var categories []string
	found := false
	for _, c := range s.Categories {
		if c == categoryID {
			found = true
			continue
		}
		categories = append(categories, c)
	}
	if !found {
		categories = append(categories, categoryID)
	}
	s.Categories = categories
	s.Page = 1
	return s
}

// WithSearch sets the search text and resets the page
func (s ViewState) WithSearch(search string) ViewState {
	s.Search = search
	s.Page = 1
	return s
}

// WithSort sets the sort value and resets the page
func (s ViewState) WithSort(sort string) ViewState {
	s.Sort = sort
	s.Page = 1
	return s
}

// ClearFilters resets the view
func (s ViewState) ClearFilters() ViewState {
	return ViewState{Page: 1}
}

// GoToPage changes the page. Pages outside [1, totalPages] are ignored.
func (s ViewState) GoToPage(page, totalPages int) ViewState {
	if page >= 1 && page <= totalPages {
		s.Page = page
	}
	return s
}

// HasFilters is true if categories or a search are selected
func (s ViewState) HasFilters() bool {
	return len(s.Categories) > 0 || len(s.Search) > 0
}

// Pristine is true for the first page without filters. Only then the
// initial prompt list may stand in for the live listing.
func (s ViewState) Pristine() bool {
	return !s.HasFilters() && s.Page <= 1
}

// ShowNewest is true if the newest prompts strip is shown: no filters, no
// search, no sort, first page.
func (s ViewState) ShowNewest() bool {
	return s.Pristine() && len(s.Sort) == 0
}

// SortLabel describes the active sort, or "" for the default
func (s ViewState) SortLabel() string {
	switch s.Sort {
	case SortPopular:
		return "Sorting by popularity"
	case SortRecent:
		return "Sorting by most recent"
	case SortFeatured:
		return "Sorting by featured"
	}
	return ""
}

// DataSort maps the visitor's sort value to the data layer's sort order
func DataSort(sort string) directory.SortOrder {
	switch sort {
	case SortPopular:
		return directory.SortUsage
	case SortRecent:
		return directory.SortRecent
	case SortFeatured:
		return directory.SortFeatured
	}
	return directory.SortDefault
}

// Query returns the data layer query for the view. Only the first selected
// category is sent.
func (s ViewState) Query() directory.Query {
	q := directory.Query{
		Search: s.Search,
		Sort:   DataSort(s.Sort),
		Limit:  PageSize,
		Page:   s.Page,
	}
	if len(s.Categories) > 0 {
		q.Category = s.Categories[0]
	}
	if q.Page < 1 {
		q.Page = 1
	}
	return q
}

// PageWindow returns at most 5 page numbers around the current page
func PageWindow(current, totalPages int) []int {
	n := totalPages
	if n > 5 {
		n = 5
	}
	pages := make([]int, 0, n)
	for i := 0; i < n; i++ {
		p := i + 1
		if totalPages > 5 {
			switch {
			case current <= 3:
				p = i + 1
			case current >= totalPages-2:
				p = totalPages - 4 + i
			default:
				p = current - 2 + i
			}
		}
		pages = append(pages, p)
	}
	return pages
}
