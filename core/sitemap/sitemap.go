// Package sitemap renders sitemaps.org 0.9 sitemaps of the prompt library.
package sitemap

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/promptlib/core/directory"
)

// Namespace is the sitemaps.org schema namespace
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// the response headers of a sitemap
const (
	ContentType  = "application/xml"
	CacheControl = "public, max-age=3600"
)

// change frequencies
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// Item is one URL of a sitemap
type Item struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	// Priority is omitted when zero
	Priority float64
}

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

// SiteURL returns the configured site url, or the request origin if none is
// configured, without trailing slash
func SiteURL(configured, origin string) string {
	site := configured
	if len(site) == 0 {
		site = origin
	}
	return strings.TrimSuffix(site, "/")
}

// Items returns the static entries followed by one entry per prompt and per
// blog post with a slug
func Items(siteURL string, prompts []directory.Prompt, blogs []directory.Blog) []Item {
	items := []Item{
		{Loc: siteURL + "/", ChangeFreq: Daily, Priority: 1.0},
		{Loc: siteURL + "/directory", ChangeFreq: Daily, Priority: 0.9},
		{Loc: siteURL + "/blogs", ChangeFreq: Weekly, Priority: 0.8},
		{Loc: siteURL + "/submit", ChangeFreq: Monthly, Priority: 0.5},
	}
	for _, p := range prompts {
		items = append(items, Item{
			Loc:        siteURL + "/directory/" + p.ID.String(),
			LastMod:    lastModified(p.UpdatedAt, p.CreatedAt),
			ChangeFreq: Weekly,
			Priority:   0.7,
		})
	}
	for _, b := range blogs {
		if len(b.Slug) == 0 {
			continue
		}
		items = append(items, Item{
			Loc:        siteURL + "/blogs/" + b.Slug,
			LastMod:    lastModified(b.UpdatedAt, b.CreatedAt),
			ChangeFreq: Monthly,
			Priority:   0.7,
		})
	}
	return items
}

func lastModified(updated, created time.Time) time.Time {
	if !updated.IsZero() {
		return updated
	}
	return created
}

// Render renders the items as sitemap xml document
func Render(items []Item) ([]byte, error) {
	set := xmlURLSet{Xmlns: Namespace, URLs: make([]xmlURL, 0, len(items))}
	for _, item := range items {
		u := xmlURL{Loc: item.Loc, ChangeFreq: item.ChangeFreq}
		if !item.LastMod.IsZero() {
			u.LastMod = item.LastMod.UTC().Format("2006-01-02T15:04:05.000Z")
		}
		if item.Priority != 0 {
			u.Priority = strconv.FormatFloat(item.Priority, 'f', -1, 64)
		}
		set.URLs = append(set.URLs, u)
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
