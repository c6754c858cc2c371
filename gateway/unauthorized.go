package gateway

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/go-admin-session/internal/errors"
	"github.com/rs/zerolog/log"
)

func (g *Gateway) unauthorized(ctx context.Context, req Request, out any, res *response) error {
	// The redirect policy applies to every 401, public calls included.
	if g.policy == RedirectToLogin {
		return g.redirectToLogin(ctx, res)
	}
	if req.Public || req.NoRefresh {
		return g.failure(ctx, req, res, KindUnauthorized, apperrors.ErrNotAuthenticated)
	}
	return g.refreshAndRetry(ctx, req, out)
}

// redirectToLogin drops the credentials and navigates to login. Concurrent
// 401s each do the same; nothing is coalesced.
func (g *Gateway) redirectToLogin(ctx context.Context, res *response) error {
	if err := g.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear credentials after 401")
	}
	g.navigator.ToLogin(ctx)

	gwErr := &Error{
		Kind:    KindUnauthorized,
		Status:  res.status,
		Message: g.responseMessage(res),
		Code:    res.code(),
		TraceID: res.traceID,
		Err:     apperrors.ErrNotAuthenticated,
	}
	return gwErr
}

// refreshAndRetry runs or joins the single refresh cycle. The leader refreshes,
// resumes every parked call in arrival order and then replays its own call.
// Parked calls are replayed on the leader's goroutine, which keeps the reissue
// order identical to the arrival order.
func (g *Gateway) refreshAndRetry(ctx context.Context, req Request, out any) error {
	refresher := g.currentRefresher()
	if refresher == nil {
		g.expireSession(ctx, nil)
		return refreshRejected(apperrors.ErrRefresherMissing)
	}

	done := make(chan error, 1)
	accessToken, leader, err := g.coordinator.Do(
		func() (string, error) {
			return g.refresh(ctx, refresher)
		},
		func(accessToken string, err error) {
			if err != nil {
				done <- refreshRejected(err)
				return
			}
			done <- g.replay(ctx, req, out, accessToken)
		},
	)
	if leader {
		if err != nil {
			return refreshRejected(err)
		}
		return g.replay(ctx, req, out, accessToken)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &Error{Kind: KindTransport, Message: NetworkErrorMessage, Err: ctx.Err()}
	}
}

// refresh runs detached from the caller's cancellation so one caller giving up
// cannot fail every parked call. On failure the session is expired before the
// parked calls are rejected.
func (g *Gateway) refresh(ctx context.Context, refresher Refresher) (string, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.refreshTimeout)
	defer cancel()

	accessToken, err := refresher.Refresh(rctx)
	if err == nil && accessToken == "" {
		err = apperrors.ErrNoRefreshToken
	}
	if err != nil {
		log.Err(err).Msg("Token refresh failed, expiring session")
		g.expireSession(rctx, refresher)
		return "", err
	}
	return accessToken, nil
}

func (g *Gateway) expireSession(ctx context.Context, refresher Refresher) {
	if refresher != nil {
		refresher.Logout(ctx)
	}
	if err := g.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear credentials after refresh failure")
	}
	g.navigator.ToLogin(ctx)
	g.notifier.Error(ctx, SessionExpiredMessage)
}

func refreshRejected(err error) error {
	return &Error{
		Kind:    KindRefreshRejected,
		Status:  http.StatusUnauthorized,
		Message: SessionExpiredMessage,
		Err:     err,
	}
}
