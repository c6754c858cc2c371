// Package api wraps the admin management endpoints. Every call goes through a
// gateway, so the usual refresh and error handling apply.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-admin-session/gateway"
)

// ListParams selects one page of a list endpoint. Zero values are left to the
// backend defaults. Filters are sent as extra query parameters.
type ListParams struct {
	Page     int
	PageSize int
	Filters  url.Values
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	for k, vs := range p.Filters {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return q
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// HasNext reports whether another page follows this one.
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

// Resource is a CRUD collection at a fixed path. T is the item returned by the
// backend, C the create payload and U the update payload.
type Resource[T, C, U any] struct {
	caller gateway.Caller
	path   string
}

func NewResource[T, C, U any](caller gateway.Caller, path string) *Resource[T, C, U] {
	return &Resource[T, C, U]{caller: caller, path: path}
}

func (r *Resource[T, C, U]) Path() string {
	return r.path
}

func (r *Resource[T, C, U]) itemPath(id int64, sub ...string) string {
	p := fmt.Sprintf("%s/%d", r.path, id)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

func (r *Resource[T, C, U]) List(ctx context.Context, params ListParams) (Page[T], error) {
	var page Page[T]
	err := r.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: r.path, Query: params.query()}, &page)
	return page, err
}

func (r *Resource[T, C, U]) Get(ctx context.Context, id int64) (T, error) {
	var item T
	err := r.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: r.itemPath(id)}, &item)
	return item, err
}

func (r *Resource[T, C, U]) Create(ctx context.Context, in C) (T, error) {
	var item T
	err := r.caller.Do(ctx, gateway.Request{Method: http.MethodPost, Path: r.path, Body: in}, &item)
	return item, err
}

func (r *Resource[T, C, U]) Update(ctx context.Context, id int64, in U) (T, error) {
	var item T
	err := r.caller.Do(ctx, gateway.Request{Method: http.MethodPut, Path: r.itemPath(id), Body: in}, &item)
	return item, err
}

func (r *Resource[T, C, U]) Delete(ctx context.Context, id int64) error {
	return r.caller.Do(ctx, gateway.Request{Method: http.MethodDelete, Path: r.itemPath(id)}, nil)
}
