// Package lambdaproxy serves an http.Handler behind API Gateway HTTP API
// (payload version 2.0) events.
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/relabs-tech/promptlib/core/logger"
)

// Proxy translates gateway events into requests for the handler
type Proxy struct {
	handler http.Handler
}

// New returns a proxy for the handler
func New(handler http.Handler) *Proxy {
	return &Proxy{handler: handler}
}

// Handle serves one gateway event. It has the signature expected by lambda.Start.
func (p *Proxy) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	ctx, rlog := logger.ContextWithLogger(ctx)
	rlog.Debugln("gateway request", event.RequestContext.RequestID, event.RouteKey)
	r, err := NewRequest(ctx, event)
	if err != nil {
		rlog.WithError(err).Errorln("Error 5160: cannot convert event")
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "Error 5160"}, nil
	}
	rec := httptest.NewRecorder()
	p.handler.ServeHTTP(rec, r)
	return NewResponse(rec.Result().StatusCode, rec.Header(), rec.Body.Bytes()), nil
}

// NewRequest builds the http request described by a gateway event
func NewRequest(ctx context.Context, event events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("cannot decode body: %w", err)
		}
		body = decoded
	}

	path := event.RawPath
	if len(path) == 0 {
		path = event.RequestContext.HTTP.Path
	}
	if len(path) == 0 {
		path = "/"
	}
	target := path
	if len(event.RawQueryString) > 0 {
		target += "?" + event.RawQueryString
	}
	method := event.RequestContext.HTTP.Method
	if len(method) == 0 {
		method = http.MethodGet
	}

	r, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, value := range event.Headers {
		// the gateway joins repeated headers with commas
		r.Header.Set(key, value)
	}
	if len(event.Cookies) > 0 {
		r.Header.Set("Cookie", strings.Join(event.Cookies, "; "))
	}
	r.Host = r.Header.Get("Host")
	if len(r.Host) == 0 {
		r.Host = event.RequestContext.DomainName
	}
	if len(r.Header.Get("X-Forwarded-Proto")) == 0 {
		r.Header.Set("X-Forwarded-Proto", "https")
	}
	if ip := event.RequestContext.HTTP.SourceIP; len(ip) > 0 {
		r.RemoteAddr = ip + ":0"
	}
	r.ContentLength = int64(len(body))
	return r, nil
}

// NewResponse converts a recorded response into a gateway response. Set-Cookie
// headers become cookies, bodies which are not valid utf-8 are base64 encoded.
func NewResponse(status int, header http.Header, body []byte) events.APIGatewayV2HTTPResponse {
	res := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{},
	}
	for key, values := range header {
		if key == "Set-Cookie" {
			res.Cookies = append(res.Cookies, values...)
			continue
		}
		res.Headers[key] = strings.Join(values, ",")
	}
	if utf8.Valid(body) {
		res.Body = string(body)
	} else {
		res.Body = base64.StdEncoding.EncodeToString(body)
		res.IsBase64Encoded = true
	}
	return res
}
