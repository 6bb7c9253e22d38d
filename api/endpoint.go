package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/dropzone-client/apiclient"
)

// Doer is the part of apiclient.Client the endpoints need.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

var _ Doer = (*apiclient.Client)(nil)

// Querier is implemented by GET request types that translate to a query string.
type Querier interface {
	Query() url.Values
}

// Endpoint binds a method and path template to its request and response
// schema. Path placeholders are written as {name} and filled in order.
type Endpoint[Req, Res any] struct {
	Method string
	Path   string
}

// Call validates req, sends it and unwraps the response envelope. For GET
// endpoints req is turned into a query string when it implements Querier.
func (e Endpoint[Req, Res]) Call(ctx context.Context, c Doer, req Req, pathParams ...string) (Res, error) {
	var zero Res

	if err := Validate(req); err != nil {
		return zero, err
	}

	path, err := fillPath(e.Path, pathParams)
	if err != nil {
		return zero, &apiclient.UnknownError{Err: err}
	}

	r := apiclient.Request{Method: e.Method, Path: path}
	switch {
	case e.Method == http.MethodGet:
		if q, ok := any(req).(Querier); ok {
			r.Query = q.Query()
		}
	case !isEmpty(req):
		r.Body = req
	}

	resp, err := c.Do(ctx, r)
	if err != nil {
		return zero, err
	}

	var env Envelope[Res]
	if err := resp.DecodeJSON(&env); err != nil {
		return zero, err
	}
	if !env.Success {
		return zero, &apiclient.HTTPError{Status: resp.Status, Message: env.Error, Body: resp.Body}
	}
	if env.Data == nil {
		return zero, nil
	}
	return *env.Data, nil
}

func isEmpty(v any) bool {
	switch v.(type) {
	case Empty, *Empty:
		return true
	}
	return false
}

func fillPath(template string, params []string) (string, error) {
	out := template
	for _, p := range params {
		start := strings.Index(out, "{")
		end := strings.Index(out, "}")
		if start < 0 || end < start {
			return "", fmt.Errorf("path %q has no placeholder for %q", template, p)
		}
		out = out[:start] + url.PathEscape(p) + out[end+1:]
	}
	if strings.Contains(out, "{") {
		return "", fmt.Errorf("path %q has unfilled placeholders", template)
	}
	return out, nil
}
