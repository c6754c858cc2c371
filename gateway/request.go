package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Request describes one API call. Path is relative to the gateway base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Public calls are sent without credentials.
	Public bool
	// NoRefresh makes a 401 terminal for this call. Auth endpoints set it so a
	// refresh can never wait on itself.
	NoRefresh bool
	// Quiet suppresses user-facing notifications; failures are still returned.
	Quiet bool
}

func (g *Gateway) Get(ctx context.Context, path string, query url.Values, out any) error {
	return g.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (g *Gateway) Put(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (g *Gateway) Delete(ctx context.Context, path string, out any) error {
	return g.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Caller is the part of a Gateway that endpoint wrappers depend on.
type Caller interface {
	Do(ctx context.Context, req Request, out any) error
}

var _ Caller = (*Gateway)(nil)
