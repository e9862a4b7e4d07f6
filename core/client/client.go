/*
Package client provides easy and fast in-process access to the promptlib api

Instead of marshalling HTTP, the client talks directly to the http handler. The
client is perfectly suited for unit tests. With NewWithURL the same calls go
over the network to a running service.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/directory"
)

// Client provides easy access to the REST API.
type Client struct {
	handler    http.Handler
	httpClient *http.Client
	url        string
	token      string
	auth       *access.Authorization
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithHandler creates a client to make pseudo-REST requests through the handler,
// typically the mux router or web.Handler()
//
// WithAuthorization() adds an authorization to the request context.
// WithContext() specifies a different base context all together.
func NewWithHandler(handler http.Handler) Client {
	return Client{
		handler:        handler,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the service
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithAuthorization returns a new client with specific authorizations
// (this works only directly against the handler, for a normal client
//
//	use WithToken())
func (c Client) WithAuthorization(auth *access.Authorization) Client {
	c.auth = auth
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	ctx := c.ctx
	if c.ctx == nil {
		ctx = context.Background()
	}
	if c.auth != nil {
		ctx = access.ContextWithAuthorization(ctx, c.auth)
	}
	return ctx
}

// Response is the outcome of a raw request
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends a request and returns the response. body is marshalled to json
// unless it is a []byte or nil.
func (c Client) Do(method, path string, header map[string]string, body interface{}) (*Response, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		j, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s to %s: %w", method, path, err)
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	for key, value := range header {
		r.Header.Set(key, value)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.handler != nil {
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, r)
		res := rec.Result()
		return &Response{Status: res.StatusCode, Header: res.Header, Body: rec.Body.Bytes()}, nil
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: resBody}, nil
}

// raw sends a request and expects one of the wanted status codes. The response
// body is unmarshalled into result, which can also be a raw *[]byte or nil.
func (c Client) raw(method, path string, header map[string]string, body, result interface{}, want ...int) (int, http.Header, error) {
	res, err := c.Do(method, path, header, body)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	ok := false
	for _, status := range want {
		ok = ok || res.Status == status
	}
	if !ok {
		return res.Status, res.Header, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			res.Status, want[0], strings.TrimSpace(string(res.Body)))
	}
	if len(res.Body) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = res.Body
		} else {
			err = json.Unmarshal(res.Body, result)
		}
	}
	return res.Status, res.Header, err
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.raw(http.MethodGet, path, nil, nil, result, http.StatusOK, http.StatusNoContent)
	return status, err
}

// RawGetWithHeader is like RawGet but sends additional headers and returns the response header.
// http.StatusNotModified is accepted as well.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	return c.raw(http.MethodGet, path, header, nil, result, http.StatusOK, http.StatusNotModified, http.StatusNoContent)
}

// RawPost posts body to path. Expects http.StatusCreated, http.StatusOK or
// http.StatusNoContent as response, otherwise it will flag an error.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.raw(http.MethodPost, path, nil, body, result, http.StatusCreated, http.StatusOK, http.StatusNoContent)
	return status, err
}

// RawPut puts body to path. Expects http.StatusOK or http.StatusNoContent as response.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.raw(http.MethodPut, path, nil, body, result, http.StatusOK, http.StatusNoContent)
	return status, err
}

// RawDelete deletes the resource at path. Expects http.StatusNoContent as response, otherwise it will
// flag an error.
func (c Client) RawDelete(path string) (int, error) {
	status, _, err := c.raw(http.MethodDelete, path, nil, nil, nil, http.StatusNoContent)
	return status, err
}

// Boot reads the directory boot data
func (c Client) Boot() (*directory.BootData, error) {
	var boot directory.BootData
	_, err := c.RawGet("/api/directory/boot", &boot)
	return &boot, err
}

// Prompts lists approved prompts. Known parameters are category, q, sort, limit and page.
func (c Client) Prompts(parameters url.Values) (*directory.Page, error) {
	path := "/api/prompts"
	if len(parameters) > 0 {
		path += "?" + parameters.Encode()
	}
	var page directory.Page
	_, err := c.RawGet(path, &page)
	return &page, err
}

// Prompt reads a single prompt
func (c Client) Prompt(id uuid.UUID) (*directory.Prompt, error) {
	var p directory.Prompt
	_, err := c.RawGet("/api/prompts/"+id.String(), &p)
	return &p, err
}

// Submit submits a prompt for moderation
func (c Client) Submit(sub directory.Submission) (*directory.Prompt, error) {
	var p directory.Prompt
	_, err := c.RawPost("/api/prompts", sub, &p)
	return &p, err
}

// Moderate sets the moderation status of a prompt. Requires an admin.
func (c Client) Moderate(id uuid.UUID, status directory.Status) (*directory.Prompt, error) {
	var p directory.Prompt
	_, err := c.RawPut("/api/admin/prompts/"+id.String()+"/status", map[string]string{"status": string(status)}, &p)
	return &p, err
}
