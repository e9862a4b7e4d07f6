package lambdaproxy

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayEvent(method, path, query string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		Version:        "2.0",
		RouteKey:       "$default",
		RawPath:        path,
		RawQueryString: query,
		Headers:        map[string]string{"host": "prompts.example.org", "content-type": "application/json"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			RequestID:  "gw-1",
			DomainName: "prompts.example.org",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.9",
			},
		},
	}
}

func TestNewRequest(t *testing.T) {
	event := gatewayEvent(http.MethodPost, "/api/prompts", "category=worship&page=2")
	event.Cookies = []string{"session=abc", "theme=dark"}
	event.Body = base64.StdEncoding.EncodeToString([]byte(`{"title":"x"}`))
	event.IsBase64Encoded = true

	r, err := NewRequest(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "/api/prompts", r.URL.Path)
	assert.Equal(t, "worship", r.URL.Query().Get("category"))
	assert.Equal(t, "prompts.example.org", r.Host)
	assert.Equal(t, "https", r.Header.Get("X-Forwarded-Proto"))
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(t, "203.0.113.9:0", r.RemoteAddr)
	cookie, err := r.Cookie("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", cookie.Value)
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, string(body))

	event.Body = "%%%"
	_, err = NewRequest(context.Background(), event)
	assert.Error(t, err)
}

func TestNewResponse(t *testing.T) {
	header := http.Header{}
	header.Add("Set-Cookie", "a=1")
	header.Add("Set-Cookie", "b=2")
	header.Add("Vary", "Accept-Encoding")
	header.Add("Vary", "Cookie")

	res := NewResponse(http.StatusOK, header, []byte("hello"))
	assert.Equal(t, []string{"a=1", "b=2"}, res.Cookies)
	assert.Equal(t, "Accept-Encoding,Cookie", res.Headers["Vary"])
	assert.Equal(t, "hello", res.Body)
	assert.False(t, res.IsBase64Encoded)

	res = NewResponse(http.StatusOK, http.Header{}, []byte{0x1f, 0x8b, 0xff})
	assert.True(t, res.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x1f, 0x8b, 0xff}), res.Body)
}

func TestProxyHandle(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/directory/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(mux.Vars(r)["id"] + " " + r.Host))
	}).Methods(http.MethodGet)

	p := New(router)
	res, err := p.Handle(context.Background(), gatewayEvent(http.MethodGet, "/directory/42", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, res.StatusCode)
	assert.Equal(t, "text/plain", res.Headers["Content-Type"])
	assert.Equal(t, "42 prompts.example.org", res.Body)

	res, err = p.Handle(context.Background(), gatewayEvent(http.MethodDelete, "/directory/42", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
