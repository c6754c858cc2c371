// Package fakebackend is an in-process stand-in for the admin and mini-program
// API. It speaks the same enveloped JSON contract, issues HS256 JWTs and lets
// tests expire tokens, hold the refresh endpoint or force failures per route.
package fakebackend

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	DefaultUsername = "admin"
	DefaultPassword = "admin123"
	DefaultWxCode   = "wx-code"
)

// RecordedRequest is one request as the backend saw it.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	TraceID       string
	Status        int
	At            time.Time
}

type failure struct {
	status  int
	code    int
	message string
}

// Backend is the fake API server. All methods are safe for concurrent use.
type Backend struct {
	router chi.Router
	server *httptest.Server
	secret []byte

	mu          sync.Mutex
	username    string
	password    string
	user        any
	menus       any
	mpUser      map[string]any
	mpLoggedIn  bool
	accessTTL   time.Duration
	access      map[string]bool
	refresh     map[string]bool
	requests    []RecordedRequest
	refreshes   int
	logouts     int
	failures    map[string]failure
	refreshGate chan struct{}
	resources   map[string]*resourceTable
	roleLinks   map[string]map[int64][]int64
}

type Option func(*Backend)

// WithCredentials sets the admin username and password accepted by login.
func WithCredentials(username, password string) Option {
	return func(b *Backend) {
		b.username = username
		b.password = password
	}
}

// WithUser sets the payload returned by GET /api/v1/admin/auth/me.
func WithUser(user any) Option {
	return func(b *Backend) {
		b.user = user
	}
}

// WithMenus sets the payload returned by GET /api/v1/admin/menus/my.
func WithMenus(menus any) Option {
	return func(b *Backend) {
		b.menus = menus
	}
}

// WithAccessTTL sets the exp claim of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = ttl
	}
}

func New(options ...Option) *Backend {
	b := &Backend{
		secret:    []byte("fake-backend-secret"),
		username:  DefaultUsername,
		password:  DefaultPassword,
		accessTTL: 30 * time.Minute,
		access:    make(map[string]bool),
		refresh:   make(map[string]bool),
		failures:  make(map[string]failure),
		resources: make(map[string]*resourceTable),
		roleLinks: make(map[string]map[int64][]int64),
		user: map[string]any{
			"id":          1,
			"username":    DefaultUsername,
			"real_name":   "Administrator",
			"status":      1,
			"permissions": []string{"sys:user:list", "sys:role:list"},
		},
		menus: []any{},
		mpUser: map[string]any{
			"id":         1,
			"openid":     "openid-1",
			"nickname":   "",
			"created_at": "2024-01-01T00:00:00",
		},
	}
	for _, opt := range options {
		opt(b)
	}
	for _, name := range []string{"users", "roles", "permissions", "menus"} {
		b.resources[name] = newResourceTable()
	}
	b.roleLinks["permissions"] = make(map[int64][]int64)
	b.roleLinks["menus"] = make(map[int64][]int64)
	b.roleLinks["roles"] = make(map[int64][]int64)
	b.router = b.routes()
	return b
}

// Start serves the backend on a local httptest server.
func Start(options ...Option) *Backend {
	b := New(options...)
	b.server = httptest.NewServer(b.router)
	return b
}

func (b *Backend) URL() string {
	if b.server == nil {
		return ""
	}
	return b.server.URL
}

func (b *Backend) Close() {
	if b.server != nil {
		b.server.Close()
	}
}

func (b *Backend) Handler() http.Handler {
	return b.router
}

// ExpireAccessTokens invalidates every access token issued so far.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]bool)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]bool)
}

// Fail makes every request to method+path answer with the given HTTP status
// and envelope code until ClearFailures is called.
func (b *Backend) Fail(method, path string, status, code int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, code: code, message: message}
}

func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// HoldRefresh blocks the refresh endpoint until the returned release func is called.
func (b *Backend) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.refreshGate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.refreshGate == gate {
				b.refreshGate = nil
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

// RefreshCount is the number of refresh requests received.
func (b *Backend) RefreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// LogoutCount is the number of logout requests received.
func (b *Backend) LogoutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logouts
}

// Requests returns every request received so far, in arrival order.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// RequestsTo returns the requests made to path, in arrival order.
func (b *Backend) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range b.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// MPUser returns a copy of the stored mini-program profile.
func (b *Backend) MPUser() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.mpUser))
	for k, v := range b.mpUser {
		out[k] = v
	}
	return out
}
