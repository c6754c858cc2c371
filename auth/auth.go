// Package auth wraps the admin authentication endpoints.
package auth

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-admin-session/gateway"
	"github.com/jrsteele09/go-admin-session/menus"
	"github.com/jrsteele09/go-admin-session/users"
	"github.com/pkg/errors"
)

const (
	RouteLogin   = "/api/v1/admin/auth/login"
	RouteRefresh = "/api/v1/admin/auth/refresh"
	RouteMe      = "/api/v1/admin/auth/me"
	RouteLogout  = "/api/v1/admin/auth/logout"
	RouteMyMenus = "/api/v1/admin/menus/my"
)

// Credentials is the admin login form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is issued on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Complete reports whether both tokens were issued.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// AccessToken is issued on refresh. The refresh token stays the same.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// API calls the admin auth endpoints through a gateway. Login, Refresh and
// Logout never trigger a token refresh themselves.
type API struct {
	caller gateway.Caller
}

func New(caller gateway.Caller) (*API, error) {
	if caller == nil {
		return nil, errors.New("[auth New] gateway is required")
	}
	return &API{caller: caller}, nil
}

func (a *API) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	var pair TokenPair
	err := a.caller.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      RouteLogin,
		Body:      creds,
		Public:    true,
		NoRefresh: true,
	}, &pair)
	return pair, err
}

// Refresh exchanges a refresh token for a new access token. Failures are not
// shown to the user; the caller decides how to surface them.
func (a *API) Refresh(ctx context.Context, refreshToken string) (AccessToken, error) {
	var tok AccessToken
	err := a.caller.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      RouteRefresh,
		Body:      refreshTokenRequest{RefreshToken: refreshToken},
		Public:    true,
		NoRefresh: true,
		Quiet:     true,
	}, &tok)
	return tok, err
}

func (a *API) Me(ctx context.Context) (*users.User, error) {
	var u users.User
	if err := a.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: RouteMe}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout invalidates the refresh token on the backend.
func (a *API) Logout(ctx context.Context, refreshToken string) error {
	return a.caller.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      RouteLogout,
		Body:      refreshTokenRequest{RefreshToken: refreshToken},
		NoRefresh: true,
		Quiet:     true,
	}, nil)
}

// MyMenus returns the menu tree of the signed-in user.
func (a *API) MyMenus(ctx context.Context) ([]menus.Node, error) {
	var nodes []menus.Node
	if err := a.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: RouteMyMenus}, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}
