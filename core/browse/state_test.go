package browse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/directory"
)

func TestParseViewState(t *testing.T) {
	values, err := url.ParseQuery("category=worship,outreach&q=easter+vigil&sort=popular&page=3")
	require.NoError(t, err)
	s := ParseViewState(values)
	assert.Equal(t, []string{"worship", "outreach"}, s.Categories)
	assert.Equal(t, "easter vigil", s.Search)
	assert.Equal(t, "popular", s.Sort)
	assert.Equal(t, 3, s.Page)
	assert.Equal(t, "category=worship%2Coutreach&q=easter+vigil&sort=popular&page=3", s.QueryString())

	for _, page := range []string{"0", "-2", "abc", ""} {
		s = ParseViewState(url.Values{"page": {page}})
		assert.Equal(t, 1, s.Page, page)
	}
}

func TestViewStateURL(t *testing.T) {
	assert.Equal(t, "/directory", ViewState{Page: 1}.URL("/directory"))
	assert.Equal(t, "/directory?sort=recent", ViewState{Sort: "recent", Page: 1}.URL("/directory"))
	assert.Equal(t, "/directory?page=2", ViewState{Page: 2}.URL("/directory"))

	s := ViewState{Categories: []string{"youth-ministry"}, Search: "games & fun", Sort: "featured", Page: 4}
	values, err := url.ParseQuery(s.QueryString())
	require.NoError(t, err)
	assert.Equal(t, s, ParseViewState(values))
}

func TestViewStateTransitions(t *testing.T) {
	s := ViewState{Page: 4}
	s = s.ToggleCategory("worship")
	assert.Equal(t, []string{"worship"}, s.Categories)
	assert.Equal(t, 1, s.Page)
	assert.True(t, s.HasCategory("worship"))

	s = s.ToggleCategory("outreach").GoToPage(2, 3)
	assert.Equal(t, []string{"worship", "outreach"}, s.Categories)
	assert.Equal(t, 2, s.Page)
	s = s.ToggleCategory("worship")
	assert.Equal(t, []string{"outreach"}, s.Categories)
	assert.Equal(t, 1, s.Page)

	s = s.GoToPage(3, 3).WithSearch("prayer")
	assert.Equal(t, 1, s.Page)
	s = s.GoToPage(3, 3).WithSort("recent")
	assert.Equal(t, 1, s.Page)

	// out of range pages are ignored
	s = s.GoToPage(2, 3)
	assert.Equal(t, 2, s.GoToPage(0, 3).Page)
	assert.Equal(t, 2, s.GoToPage(4, 3).Page)

	s = s.ClearFilters()
	assert.Equal(t, ViewState{Page: 1}, s)
}

func TestViewStateNewestStrip(t *testing.T) {
	assert.True(t, ViewState{Page: 1}.ShowNewest())
	assert.False(t, ViewState{Page: 2}.ShowNewest())
	assert.False(t, ViewState{Page: 1, Sort: "recent"}.ShowNewest())
	assert.False(t, ViewState{Page: 1, Search: "x"}.ShowNewest())
	assert.False(t, ViewState{Page: 1, Categories: []string{"worship"}}.ShowNewest())
	// a sort does not disturb the pristine listing fallback
	assert.True(t, ViewState{Page: 1, Sort: "recent"}.Pristine())
}

func TestViewStateQuery(t *testing.T) {
	q := ViewState{Categories: []string{"worship", "outreach"}, Search: "hope", Sort: "popular", Page: 2}.Query()
	assert.Equal(t, directory.Query{Category: "worship", Search: "hope", Sort: directory.SortUsage, Limit: PageSize, Page: 2}, q)

	assert.Equal(t, directory.SortDefault, ViewState{}.Query().Sort)
	assert.Equal(t, 1, ViewState{}.Query().Page)
	assert.Equal(t, directory.SortRecent, DataSort("recent"))
	assert.Equal(t, directory.SortFeatured, DataSort("featured"))
	assert.Equal(t, directory.SortDefault, DataSort("bogus"))
	assert.Equal(t, "Sorting by popularity", ViewState{Sort: "popular"}.SortLabel())
	assert.Equal(t, "", ViewState{}.SortLabel())
}

func TestPageWindow(t *testing.T) {
	assert.Equal(t, []int{}, PageWindow(1, 0))
	assert.Equal(t, []int{1, 2, 3}, PageWindow(2, 3))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, PageWindow(1, 5))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, PageWindow(3, 10))
	assert.Equal(t, []int{3, 4, 5, 6, 7}, PageWindow(5, 10))
	assert.Equal(t, []int{6, 7, 8, 9, 10}, PageWindow(8, 10))
	assert.Equal(t, []int{6, 7, 8, 9, 10}, PageWindow(10, 10))
}
