package sitemap

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/directory"
)

func TestSiteURL(t *testing.T) {
	assert.Equal(t, "https://promptlib.app", SiteURL("https://promptlib.app/", "http://localhost:8080"))
	assert.Equal(t, "http://localhost:8080", SiteURL("", "http://localhost:8080/"))
}

func TestItems(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	prompt := directory.Prompt{ID: uuid.New(), CreatedAt: created}
	edited := directory.Prompt{ID: uuid.New(), CreatedAt: created, UpdatedAt: updated}
	blogs := []directory.Blog{{Slug: "welcome", CreatedAt: created}, {Slug: "", CreatedAt: created}}

	items := Items("https://promptlib.app", []directory.Prompt{prompt, edited}, blogs)
	require.Len(t, items, 7)
	assert.Equal(t, Item{Loc: "https://promptlib.app/", ChangeFreq: Daily, Priority: 1.0}, items[0])
	assert.Equal(t, "https://promptlib.app/directory", items[1].Loc)
	assert.Equal(t, 0.8, items[2].Priority)
	assert.Equal(t, Monthly, items[3].ChangeFreq)
	assert.Equal(t, "https://promptlib.app/directory/"+prompt.ID.String(), items[4].Loc)
	assert.Equal(t, created, items[4].LastMod)
	assert.Equal(t, updated, items[5].LastMod)
	assert.Equal(t, "https://promptlib.app/blogs/welcome", items[6].Loc)
	assert.Equal(t, Monthly, items[6].ChangeFreq)
}

func TestRender(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	body, err := Render([]Item{
		{Loc: "https://promptlib.app/", ChangeFreq: Daily, Priority: 1.0},
		{Loc: "https://promptlib.app/blogs/a&b", LastMod: created, ChangeFreq: Monthly, Priority: 0.7},
		{Loc: "https://promptlib.app/unranked"},
	})
	require.NoError(t, err)
	doc := string(body)
	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	assert.Contains(t, doc, `<priority>1</priority>`)
	assert.Contains(t, doc, `<priority>0.7</priority>`)
	assert.Contains(t, doc, `<lastmod>2024-01-02T03:04:05.000Z</lastmod>`)
	assert.Contains(t, doc, `<loc>https://promptlib.app/blogs/a&amp;b</loc>`)

	var set xmlURLSet
	require.NoError(t, xml.Unmarshal(body, &set))
	require.Len(t, set.URLs, 3)
	assert.Equal(t, "", set.URLs[2].Priority)
	assert.Equal(t, "", set.URLs[2].LastMod)
	assert.Equal(t, "", set.URLs[2].ChangeFreq)
}
