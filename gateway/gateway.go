package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/internal/config"
	apperrors "github.com/jrsteele09/go-admin-session/internal/errors"
	"github.com/jrsteele09/go-admin-session/internal/notify"
	"github.com/jrsteele09/go-admin-session/internal/utils"
	"github.com/jrsteele09/go-admin-session/token"
	"github.com/jrsteele09/go-admin-session/token/refresh"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	TraceHeader = "X-Trace-ID"

	SessionExpiredMessage = "session expired, please log in again"
	RequestFailedMessage  = "request failed"
	NetworkErrorMessage   = "network error"

	defaultTimeout     = 30 * time.Second
	defaultSuccessCode = 200
	maxResponseBytes   = 10 << 20
)

// Notifier shows a user-facing error notice.
type Notifier interface {
	Error(ctx context.Context, msg string)
}

// Navigator sends the user to the unauthenticated entry point.
type Navigator interface {
	ToLogin(ctx context.Context)
}

// Refresher obtains a new access token and tears the session down when that fails.
// Refresh returns an empty token and a nil error when there is no refresh token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context)
}

// Policy selects how a 401 on an authenticated call is handled.
type Policy int

const (
	// RefreshAndRetry refreshes once, coalescing concurrent 401s, and replays the call.
	RefreshAndRetry Policy = iota
	// RedirectToLogin clears the credentials and navigates to login without refreshing.
	RedirectToLogin
)

// Gateway sends enveloped JSON API calls with bearer credentials from a
// credential store and recovers from expired access tokens.
type Gateway struct {
	baseURL          *url.URL
	client           *http.Client
	store            credentials.Store
	successCode      int
	refreshTimeout   time.Duration
	policy           Policy
	notifier         Notifier
	navigator        Navigator
	metrics          *Metrics
	httpErrorMessage string
	coordinator      *refresh.Coordinator

	mu        sync.RWMutex
	refresher Refresher
}

type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithTimeout bounds every round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.client.Timeout = timeout
		}
	}
}

// WithRefreshTimeout bounds a refresh cycle independently of the caller's context.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.refreshTimeout = timeout
		}
	}
}

func WithSuccessCode(code int) Option {
	return func(g *Gateway) {
		g.successCode = code
	}
}

func WithPolicy(policy Policy) Option {
	return func(g *Gateway) {
		g.policy = policy
	}
}

func WithNotifier(n Notifier) Option {
	return func(g *Gateway) {
		if n != nil {
			g.notifier = n
		}
	}
}

func WithNavigator(n Navigator) Option {
	return func(g *Gateway) {
		if n != nil {
			g.navigator = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithHTTPErrorMessage replaces the notice shown for non-2xx responses and
// transport failures.
func WithHTTPErrorMessage(msg string) Option {
	return func(g *Gateway) {
		g.httpErrorMessage = msg
	}
}

func New(baseURL string, store credentials.Store, options ...Option) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("[gateway New] credential store is required")
	}
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "[gateway New] invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("[gateway New] base URL %q must be http or https", baseURL)
	}

	g := &Gateway{
		baseURL:        u,
		client:         &http.Client{Timeout: defaultTimeout},
		store:          store,
		successCode:    defaultSuccessCode,
		refreshTimeout: defaultTimeout,
		policy:         RefreshAndRetry,
		notifier:       notify.Logger{},
		navigator:      notify.Logger{},
	}
	for _, opt := range options {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil)
	}
	g.coordinator = refresh.NewCoordinator(refresh.WithObserver(g.metrics))
	return g, nil
}

// NewFromConfig builds a Gateway from the API configuration. Options are applied
// after the configured values.
func NewFromConfig(cfg config.APIConfig, store credentials.Store, options ...Option) (*Gateway, error) {
	base := []Option{
		WithTimeout(cfg.GetTimeout()),
		WithRefreshTimeout(cfg.GetRefreshTimeout()),
		WithSuccessCode(cfg.GetSuccessCode()),
	}
	return New(cfg.GetBaseURL(), store, append(base, options...)...)
}

// SetRefresher attaches the component that refreshes tokens on a 401. The
// session controller registers itself here after both are constructed.
func (g *Gateway) SetRefresher(r Refresher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refresher = r
}

func (g *Gateway) currentRefresher() Refresher {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.refresher
}

func (g *Gateway) Store() credentials.Store {
	return g.store
}

// Refreshing reports whether a refresh cycle is running.
func (g *Gateway) Refreshing() bool {
	return g.coordinator.InFlight()
}

// Waiting returns the number of calls parked on the running refresh.
func (g *Gateway) Waiting() int {
	return g.coordinator.Pending()
}

// Do sends req and decodes the envelope's data into out when out is not nil.
// Every failure is an *Error.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	err := g.do(ctx, req, out)
	g.metrics.observeRequest(req.Method, err)
	return err
}

func (g *Gateway) do(ctx context.Context, req Request, out any) error {
	var accessToken string
	if !req.Public {
		rec, err := g.store.Get(ctx)
		if err != nil {
			log.Err(err).Str("path", req.Path).Msg("Failed to read credentials")
			return &Error{Kind: KindStorage, Message: RequestFailedMessage, Err: err}
		}
		accessToken = rec.AccessToken
	}

	res, err := g.send(ctx, req, accessToken)
	if err != nil {
		return g.transportFailure(ctx, req, err)
	}
	if res.status == http.StatusUnauthorized {
		return g.unauthorized(ctx, req, out, res)
	}
	return g.handle(ctx, req, res, out)
}

// replay reissues req once with a fresh access token. A second 401 is terminal.
func (g *Gateway) replay(ctx context.Context, req Request, out any, accessToken string) error {
	res, err := g.send(ctx, req, accessToken)
	if err != nil {
		return g.transportFailure(ctx, req, err)
	}
	if res.status == http.StatusUnauthorized {
		return g.failure(ctx, req, res, KindUnauthorized, apperrors.ErrAlreadyRetried)
	}
	return g.handle(ctx, req, res, out)
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

type response struct {
	status  int
	env     *envelope
	traceID string
}

// code is the envelope code, zero when the body was not an envelope.
func (r *response) code() int {
	if r.env == nil {
		return 0
	}
	return utils.Value(r.env.Code)
}

func (g *Gateway) send(ctx context.Context, req Request, accessToken string) (*response, error) {
	target := *g.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	traceID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(TraceHeader, traceID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.Public {
		token.Authorize(httpReq, accessToken)
	}

	start := time.Now()
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	log.Debug().
		Str("method", method).
		Str("path", req.Path).
		Str("trace_id", traceID).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API call completed")

	res := &response{status: httpResp.StatusCode, traceID: traceID}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Code != nil {
		res.env = &env
	}
	return res, nil
}

func (g *Gateway) handle(ctx context.Context, req Request, res *response, out any) error {
	if res.status < 200 || res.status > 299 {
		kind := KindHTTP
		if res.env != nil {
			kind = KindBusiness
		}
		return g.failure(ctx, req, res, kind, nil)
	}
	if res.env == nil {
		return g.failure(ctx, req, res, KindTransport, apperrors.ErrDecode)
	}
	if *res.env.Code != g.successCode {
		return g.failure(ctx, req, res, KindBusiness, nil)
	}
	if out == nil || len(res.env.Data) == 0 || string(res.env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(res.env.Data, out); err != nil {
		log.Err(err).Str("path", req.Path).Str("trace_id", res.traceID).Msg("Failed to decode response data")
		return g.failure(ctx, req, res, KindTransport, apperrors.Wrapf(apperrors.ErrDecode, "%v", err))
	}
	return nil
}

// failure builds the *Error for a received response and shows its notice.
func (g *Gateway) failure(ctx context.Context, req Request, res *response, kind Kind, cause error) error {
	gwErr := &Error{
		Kind:    kind,
		Status:  res.status,
		Message: g.responseMessage(res),
		Code:    res.code(),
		TraceID: res.traceID,
		Err:     cause,
	}
	g.notify(ctx, req, gwErr.Message)
	return gwErr
}

func (g *Gateway) responseMessage(res *response) string {
	isHTTPFailure := res.status < 200 || res.status > 299
	if isHTTPFailure && res.status != http.StatusUnauthorized && g.httpErrorMessage != "" {
		return g.httpErrorMessage
	}
	if res.env != nil && res.env.Message != "" {
		return res.env.Message
	}
	if isHTTPFailure {
		return fmt.Sprintf("request failed with status code %d", res.status)
	}
	return RequestFailedMessage
}

func (g *Gateway) transportFailure(ctx context.Context, req Request, err error) error {
	gwErr := &Error{Kind: KindTransport, Message: g.transportMessage(err), Err: err}
	if ctx.Err() != nil {
		// The caller gave up; nobody is waiting for a notice.
		return gwErr
	}
	log.Err(err).Str("method", req.Method).Str("path", req.Path).Msg("API call failed")
	g.notify(ctx, req, gwErr.Message)
	return gwErr
}

// transportMessage is the cause's own text, without the method and URL that
// net/http prefixes, unless a fixed message is configured.
func (g *Gateway) transportMessage(err error) string {
	if g.httpErrorMessage != "" {
		return g.httpErrorMessage
	}
	var urlErr *url.Error
	if apperrors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	if err == nil || err.Error() == "" {
		return NetworkErrorMessage
	}
	return err.Error()
}

func (g *Gateway) notify(ctx context.Context, req Request, msg string) {
	if req.Quiet {
		return
	}
	g.notifier.Error(ctx, msg)
}
