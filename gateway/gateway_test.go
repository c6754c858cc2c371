package gateway_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	credentialrepofake "github.com/jrsteele09/go-admin-session/credentials/repofake"
	"github.com/jrsteele09/go-admin-session/gateway"
	"github.com/jrsteele09/go-admin-session/internal/config"
	apperrors "github.com/jrsteele09/go-admin-session/internal/errors"
	"github.com/jrsteele09/go-admin-session/internal/fakebackend"
	"github.com/jrsteele09/go-admin-session/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	loginPath    = "/api/v1/admin/auth/login"
	refreshPath  = "/api/v1/admin/auth/refresh"
	needPermPath = "/api/v1/admin/demo/need_perm"
	publicPath   = "/api/v1/admin/demo/public"
)

type demoPayload struct {
	Path    string `json:"path"`
	Query   string `json:"query"`
	Subject string `json:"subject"`
}

// backendRefresher refreshes against the fake backend the way the session
// controller does, and counts logouts.
type backendRefresher struct {
	gw      *gateway.Gateway
	store   *credentialrepofake.FakeCredentialRepo
	logouts int32
}

func (r *backendRefresher) Refresh(ctx context.Context) (string, error) {
	rec, err := r.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if rec.RefreshToken == "" {
		return "", nil
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err = r.gw.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      refreshPath,
		Body:      map[string]string{"refresh_token": rec.RefreshToken},
		Public:    true,
		NoRefresh: true,
		Quiet:     true,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.AccessToken, r.store.SetAccessToken(ctx, out.AccessToken)
}

func (r *backendRefresher) Logout(ctx context.Context) {
	atomic.AddInt32(&r.logouts, 1)
	_ = r.store.Clear(ctx)
}

type fixture struct {
	backend   *fakebackend.Backend
	store     *credentialrepofake.FakeCredentialRepo
	recorder  *notify.Recorder
	metrics   *gateway.Metrics
	gw        *gateway.Gateway
	refresher *backendRefresher
}

func newFixture(t *testing.T, options ...gateway.Option) *fixture {
	t.Helper()
	backend := fakebackend.Start()
	t.Cleanup(backend.Close)

	f := &fixture{
		backend:  backend,
		store:    credentialrepofake.NewFakeCredentialRepo(),
		recorder: notify.NewRecorder(),
		metrics:  gateway.NewMetrics(prometheus.NewRegistry()),
	}
	base := []gateway.Option{
		gateway.WithNotifier(f.recorder),
		gateway.WithNavigator(f.recorder),
		gateway.WithMetrics(f.metrics),
		gateway.WithTimeout(5 * time.Second),
	}
	gw, err := gateway.New(backend.URL(), f.store, append(base, options...)...)
	require.NoError(t, err)
	f.gw = gw
	f.refresher = &backendRefresher{gw: gw, store: f.store}
	gw.SetRefresher(f.refresher)
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	err := f.gw.Do(context.Background(), gateway.Request{
		Method:    http.MethodPost,
		Path:      loginPath,
		Body:      map[string]string{"username": fakebackend.DefaultUsername, "password": fakebackend.DefaultPassword},
		Public:    true,
		NoRefresh: true,
	}, &pair)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), pair.AccessToken, pair.RefreshToken))
}

// call issues an authenticated demo call tagged with name and reports its result on the returned channel.
func (f *fixture) call(ctx context.Context, name string) <-chan error {
	done := make(chan error, 1)
	go func() {
		var out demoPayload
		done <- f.gw.Get(ctx, needPermPath, url.Values{"call": {name}}, &out)
	}()
	return done
}

func receive(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("call did not settle")
		return nil
	}
}

func (f *fixture) waitParked(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.gw.Refreshing() && f.gw.Waiting() == n
	}, 5*time.Second, time.Millisecond)
}

func TestNewRequiresStoreAndHTTPBaseURL(t *testing.T) {
	_, err := gateway.New("http://localhost", nil)
	require.Error(t, err)

	_, err = gateway.New("ftp://localhost", credentialrepofake.NewFakeCredentialRepo())
	require.Error(t, err)

	gw, err := gateway.NewFromConfig(config.API{BaseURL: "http://localhost:8000", Timeout: time.Second}, credentialrepofake.NewFakeCredentialRepo())
	require.NoError(t, err)
	require.NotNil(t, gw.Store())
}

func TestGatewayUnwrapsEnvelopeAndAttachesCredentials(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var out demoPayload
	require.NoError(t, f.gw.Get(context.Background(), needPermPath, url.Values{"call": {"x"}}, &out))
	require.Equal(t, needPermPath, out.Path)
	require.Equal(t, "call=x", out.Query)
	require.Equal(t, fakebackend.DefaultUsername, out.Subject)

	rec, err := f.store.Get(context.Background())
	require.NoError(t, err)
	reqs := f.backend.RequestsTo(needPermPath)
	require.Len(t, reqs, 1)
	require.Equal(t, "Bearer "+rec.AccessToken, reqs[0].Authorization)
	require.NotEmpty(t, reqs[0].TraceID)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues(http.MethodGet, "ok")))
}

func TestGatewayPublicCallsCarryNoCredentials(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: publicPath, Public: true}, nil)
	require.NoError(t, err)

	reqs := f.backend.RequestsTo(publicPath)
	require.Len(t, reqs, 1)
	require.Empty(t, reqs[0].Authorization)
}

func TestGatewayBusinessErrorNotifiesMessage(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(http.MethodGet, needPermPath, http.StatusOK, 422, "role is still in use")

	err := receive(t, f.call(context.Background(), "a"))
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrBusiness)

	gwErr, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.KindBusiness, gwErr.Kind)
	require.Equal(t, 422, gwErr.Code)
	require.Equal(t, []string{"role is still in use"}, f.recorder.Messages())

	rec, _ := f.store.Get(context.Background())
	require.True(t, rec.Authenticated(), "business errors leave the session alone")
}

func TestGatewayNon2xxEnvelopeUsesBodyMessage(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(http.MethodGet, needPermPath, http.StatusForbidden, 403, "permission denied")

	err := receive(t, f.call(context.Background(), "a"))
	require.Equal(t, gateway.KindBusiness, gateway.KindOf(err))
	require.Equal(t, []string{"permission denied"}, f.recorder.Messages())
}

func TestGatewayNon2xxWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	recorder := notify.NewRecorder()
	gw, err := gateway.New(server.URL, credentialrepofake.NewFakeCredentialRepo(), gateway.WithNotifier(recorder))
	require.NoError(t, err)

	err = gw.Get(context.Background(), "/anything", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrHTTP)
	gwErr, _ := gateway.AsError(err)
	require.Equal(t, http.StatusBadGateway, gwErr.Status)
	require.Equal(t, []string{"request failed with status code 502"}, recorder.Messages())
}

func TestGatewayFixedHTTPErrorMessage(t *testing.T) {
	f := newFixture(t, gateway.WithHTTPErrorMessage(gateway.NetworkErrorMessage))
	f.login(t)
	f.backend.Fail(http.MethodGet, needPermPath, http.StatusInternalServerError, 500, "database is down")

	err := receive(t, f.call(context.Background(), "a"))
	require.Error(t, err)
	require.Equal(t, []string{gateway.NetworkErrorMessage}, f.recorder.Messages())
}

func TestGatewayTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	recorder := notify.NewRecorder()
	gw, err := gateway.New(baseURL, credentialrepofake.NewFakeCredentialRepo(), gateway.WithNotifier(recorder))
	require.NoError(t, err)

	err = gw.Get(context.Background(), "/api/v1/admin/auth/me", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrTransport)

	msgs := recorder.Messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "connection refused")
	require.NotContains(t, msgs[0], baseURL)
	gwErr, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, msgs[0], gwErr.Message)
}

func TestGatewayTransportFailureWithFixedMessage(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	recorder := notify.NewRecorder()
	gw, err := gateway.New(baseURL, credentialrepofake.NewFakeCredentialRepo(),
		gateway.WithNotifier(recorder),
		gateway.WithHTTPErrorMessage(gateway.NetworkErrorMessage),
	)
	require.NoError(t, err)

	err = gw.Get(context.Background(), "/api/v1/mp/user/me", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrTransport)
	require.Equal(t, []string{gateway.NetworkErrorMessage}, recorder.Messages())
}

func TestGatewayDecodeFailureOnNonEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>ok</html>")
	}))
	t.Cleanup(server.Close)

	gw, err := gateway.New(server.URL, credentialrepofake.NewFakeCredentialRepo(), gateway.WithNotifier(notify.NewRecorder()))
	require.NoError(t, err)

	err = gw.Get(context.Background(), "/", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrDecode)
}

func TestGatewayCustomSuccessCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"message":"ok","data":{"name":"x"}}`)
	}))
	t.Cleanup(server.Close)

	gw, err := gateway.New(server.URL, credentialrepofake.NewFakeCredentialRepo(), gateway.WithSuccessCode(0))
	require.NoError(t, err)

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, gw.Get(context.Background(), "/", nil, &out))
	require.Equal(t, "x", out.Name)
}

func TestGatewayQuietSuppressesNotice(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(http.MethodGet, needPermPath, http.StatusOK, 422, "hidden")

	err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: needPermPath, Quiet: true}, nil)
	require.ErrorIs(t, err, apperrors.ErrBusiness)
	require.Empty(t, f.recorder.Messages())
}

func TestGatewayNoRefreshMakes401Terminal(t *testing.T) {
	f := newFixture(t)

	err := f.gw.Do(context.Background(), gateway.Request{
		Method:    http.MethodPost,
		Path:      loginPath,
		Body:      map[string]string{"username": "admin", "password": "wrong-password"},
		Public:    true,
		NoRefresh: true,
	}, nil)
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	require.Zero(t, f.backend.RefreshCount())
	require.Equal(t, []string{"incorrect username or password"}, f.recorder.Messages())
	require.Zero(t, f.recorder.Logins())
}

func TestGatewayRefreshesAndReplaysAfter401(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	before, _ := f.store.Get(context.Background())
	f.backend.ExpireAccessTokens()

	require.NoError(t, receive(t, f.call(context.Background(), "a")))

	after, _ := f.store.Get(context.Background())
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.Equal(t, before.RefreshToken, after.RefreshToken)
	require.Equal(t, 1, f.backend.RefreshCount())

	reqs := f.backend.RequestsTo(needPermPath)
	require.Len(t, reqs, 2)
	require.Equal(t, http.StatusUnauthorized, reqs[0].Status)
	require.Equal(t, "Bearer "+after.AccessToken, reqs[1].Authorization)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Refreshes.WithLabelValues("success")))
	require.False(t, f.gw.Refreshing())
}

func TestGatewaySingleRefreshForConcurrent401s(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()
	release := f.backend.HoldRefresh()
	defer release()

	const n = 12
	results := make([]<-chan error, n)
	for i := 0; i < n; i++ {
		results[i] = f.call(context.Background(), fmt.Sprintf("c%d", i))
	}
	f.waitParked(t, n-1)
	require.Eventually(t, func() bool { return f.backend.RefreshCount() == 1 }, 5*time.Second, time.Millisecond)

	release()
	for i := 0; i < n; i++ {
		require.NoError(t, receive(t, results[i]))
	}
	require.Equal(t, 1, f.backend.RefreshCount())
	require.Equal(t, float64(n-1), testutil.ToFloat64(f.metrics.RefreshWaiters))
	require.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RefreshInFlight))
	require.False(t, f.gw.Refreshing())
	require.Zero(t, f.gw.Waiting())
}

func TestGatewayReplaysParkedCallsInArrivalOrder(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()
	release := f.backend.HoldRefresh()
	defer release()

	leader := f.call(context.Background(), "L")
	require.Eventually(t, f.gw.Refreshing, 5*time.Second, time.Millisecond)

	var parked []<-chan error
	for i, name := range []string{"A", "B", "C"} {
		parked = append(parked, f.call(context.Background(), name))
		f.waitParked(t, i+1)
	}

	release()
	require.NoError(t, receive(t, leader))
	for _, ch := range parked {
		require.NoError(t, receive(t, ch))
	}

	var replayed []string
	for _, r := range f.backend.RequestsTo(needPermPath) {
		if r.Status == http.StatusOK {
			replayed = append(replayed, strings.TrimPrefix(r.Query, "call="))
		}
	}
	require.Equal(t, []string{"A", "B", "C", "L"}, replayed)
}

func TestGatewayDoesNotRetryTwice(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(http.MethodGet, needPermPath, http.StatusUnauthorized, 401, "token rejected")

	err := receive(t, f.call(context.Background(), "a"))
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrAlreadyRetried)
	require.Equal(t, 1, f.backend.RefreshCount())
	require.Len(t, f.backend.RequestsTo(needPermPath), 2)

	rec, _ := f.store.Get(context.Background())
	require.True(t, rec.Authenticated(), "a refreshed session survives a terminal 401")
	require.Equal(t, []string{"token rejected"}, f.recorder.Messages())
	require.False(t, f.gw.Refreshing())
}

func TestGatewayRefreshFailureExpiresSessionAndRejectsParkedCalls(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()
	f.backend.RevokeRefreshTokens()
	release := f.backend.HoldRefresh()
	defer release()

	leader := f.call(context.Background(), "L")
	require.Eventually(t, f.gw.Refreshing, 5*time.Second, time.Millisecond)
	a := f.call(context.Background(), "A")
	f.waitParked(t, 1)
	b := f.call(context.Background(), "B")
	f.waitParked(t, 2)

	release()
	for _, ch := range []<-chan error{leader, a, b} {
		err := receive(t, ch)
		require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
		require.Equal(t, gateway.KindRefreshRejected, gateway.KindOf(err))
	}

	rec, err := f.store.Get(context.Background())
	require.NoError(t, err)
	require.True(t, rec.Empty())
	require.EqualValues(t, 1, atomic.LoadInt32(&f.refresher.logouts))
	require.Equal(t, 1, f.recorder.Logins())
	require.Equal(t, []string{gateway.SessionExpiredMessage}, f.recorder.Messages())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Refreshes.WithLabelValues("failure")))
	require.False(t, f.gw.Refreshing())

	// A later session refreshes normally.
	f.login(t)
	f.backend.ExpireAccessTokens()
	require.NoError(t, receive(t, f.call(context.Background(), "again")))
	require.Equal(t, 2, f.backend.RefreshCount())
}

func TestGatewayMissingRefreshTokenIsRefreshFailure(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	rec, _ := f.store.Get(context.Background())
	require.NoError(t, f.store.Clear(context.Background()))
	require.NoError(t, f.store.SetAccessToken(context.Background(), rec.AccessToken))
	f.backend.ExpireAccessTokens()

	err := receive(t, f.call(context.Background(), "a"))
	require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
	require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
	require.Zero(t, f.backend.RefreshCount())
	require.Equal(t, 1, f.recorder.Logins())
}

func TestGatewayWithoutRefresherExpiresSession(t *testing.T) {
	f := newFixture(t)
	f.gw.SetRefresher(nil)
	f.login(t)
	f.backend.ExpireAccessTokens()

	err := receive(t, f.call(context.Background(), "a"))
	require.ErrorIs(t, err, apperrors.ErrRefresherMissing)
	rec, _ := f.store.Get(context.Background())
	require.True(t, rec.Empty())
}

func TestGatewayCancelledWaiterSettles(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()
	release := f.backend.HoldRefresh()
	defer release()

	leader := f.call(context.Background(), "L")
	require.Eventually(t, f.gw.Refreshing, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiter := f.call(ctx, "W")
	f.waitParked(t, 1)
	cancel()

	err := receive(t, waiter)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, gateway.KindTransport, gateway.KindOf(err))

	release()
	require.NoError(t, receive(t, leader))
	require.False(t, f.gw.Refreshing())
}

func TestGatewayRedirectPolicyClearsWithoutRefreshing(t *testing.T) {
	f := newFixture(t, gateway.WithPolicy(gateway.RedirectToLogin))
	f.login(t)
	f.backend.ExpireAccessTokens()

	err := receive(t, f.call(context.Background(), "a"))
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	require.Zero(t, f.backend.RefreshCount())
	require.Equal(t, 1, f.recorder.Logins())
	require.Empty(t, f.recorder.Messages())

	rec, _ := f.store.Get(context.Background())
	require.True(t, rec.Empty())
}

func TestGatewayRedirectPolicyAppliesToPublicCalls(t *testing.T) {
	f := newFixture(t, gateway.WithPolicy(gateway.RedirectToLogin))
	f.login(t)
	f.backend.Fail(http.MethodGet, publicPath, http.StatusUnauthorized, http.StatusUnauthorized, "signature expired")

	err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: publicPath, Public: true}, nil)
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.Equal(t, 1, f.recorder.Logins())
	require.Empty(t, f.recorder.Messages())

	rec, err := f.store.Get(context.Background())
	require.NoError(t, err)
	require.True(t, rec.Empty())
}
