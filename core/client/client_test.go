package client

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/directory"
)

// echo answers with method, path, authorization and the header X-Test
func echo(w http.ResponseWriter, r *http.Request) {
	auth := access.AuthorizationFromContext(r.Context())
	identity := ""
	if auth != nil {
		identity = auth.Identity
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"method":   r.Method,
		"uri":      r.URL.RequestURI(),
		"identity": identity,
		"header":   r.Header.Get("X-Test"),
		"bearer":   r.Header.Get("Authorization"),
	})
}

func TestClient(t *testing.T) {
	c := NewWithHandler(http.HandlerFunc(echo)).
		WithHeader("X-Test", "yes").
		WithAuthorization(&access.Authorization{Identity: "member-1"})

	var result map[string]string
	status, err := c.RawGet("/api/me", &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "GET", result["method"])
	assert.Equal(t, "member-1", result["identity"])
	assert.Equal(t, "yes", result["header"])

	status, err = c.WithToken("please").RawPost("/api/prompts", map[string]string{"title": "t"}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Bearer please", result["bearer"])

	// a delete answered with 200 is not what RawDelete expects
	status, err = c.RawDelete("/api/admin/prompts/x")
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestClientPrompts(t *testing.T) {
	var uri string
	c := NewWithHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uri = r.URL.RequestURI()
		json.NewEncoder(w).Encode(directory.Page{TotalCount: 3, TotalPages: 1, Page: 1, Limit: 50})
	}))
	page, err := c.Prompts(url.Values{"category": {"worship"}, "page": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "/api/prompts?category=worship&page=1", uri)
	assert.Equal(t, 3, page.TotalCount)
}

func TestClientWithURL(t *testing.T) {
	id := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/prompts/"+id.String() {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(directory.Prompt{ID: id, Title: "Advent"})
	}))
	defer server.Close()

	c := NewWithURL(server.URL + "/")
	p, err := c.Prompt(id)
	require.NoError(t, err)
	assert.Equal(t, "Advent", p.Title)

	_, err = c.Prompt(uuid.New())
	assert.Error(t, err)
}
