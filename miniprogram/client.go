// Package miniprogram is the mini-program client. It shares the gateway with
// the admin console but never refreshes: a 401 clears the credentials and
// sends the user to login.
package miniprogram

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/gateway"
	"github.com/jrsteele09/go-admin-session/internal/config"
	apperrors "github.com/jrsteele09/go-admin-session/internal/errors"
	"github.com/jrsteele09/go-admin-session/internal/notify"
	"github.com/jrsteele09/go-admin-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	RouteLoginByCode = "/api/v1/mp/auth/login_by_code"
	RouteBindPhone   = "/api/v1/mp/auth/bind_phone"
	RouteUserMe      = "/api/v1/mp/user/me"
)

var ErrEmptyCode = errors.New("wechat code is empty")

// LoginResult is returned by a code login.
type LoginResult struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	TokenType     string `json:"token_type,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
	IsNewUser     bool   `json:"is_new_user"`
	NeedBindPhone bool   `json:"need_bind_phone"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// PhoneBinding is returned by BindPhone.
type PhoneBinding struct {
	Phone string `json:"phone"`
}

type Client struct {
	gw        *gateway.Gateway
	store     credentials.Store
	navigator gateway.Navigator
}

// New builds a client whose gateway redirects to login on a 401 and reports
// every failed HTTP status as a network error. The store should use
// credentials.MiniProgramKeys.
func New(baseURL string, store credentials.Store, navigator gateway.Navigator, options ...gateway.Option) (*Client, error) {
	if navigator == nil {
		navigator = notify.Logger{}
	}
	base := []gateway.Option{
		gateway.WithPolicy(gateway.RedirectToLogin),
		gateway.WithHTTPErrorMessage(gateway.NetworkErrorMessage),
		gateway.WithNavigator(navigator),
	}
	gw, err := gateway.New(baseURL, store, append(base, options...)...)
	if err != nil {
		return nil, errors.Wrap(err, "[miniprogram New]")
	}
	return &Client{gw: gw, store: store, navigator: navigator}, nil
}

func NewFromConfig(cfg config.APIConfig, store credentials.Store, navigator gateway.Navigator, options ...gateway.Option) (*Client, error) {
	base := []gateway.Option{
		gateway.WithTimeout(cfg.GetTimeout()),
		gateway.WithSuccessCode(cfg.GetSuccessCode()),
	}
	return New(cfg.GetBaseURL(), store, navigator, append(base, options...)...)
}

func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}

// Launch is the app start check: without an access token the user is sent to
// login. It reports whether a token was present.
func (c *Client) Launch(ctx context.Context) (bool, error) {
	rec, err := c.store.Get(ctx)
	if err != nil {
		return false, apperrors.Wrapf(apperrors.ErrCredentialStorage, "%v", err)
	}
	if rec.AccessToken == "" {
		c.navigator.ToLogin(ctx)
		return false, nil
	}
	return true, nil
}

// LoginByCode exchanges a wx.login code for tokens and stores both.
func (c *Client) LoginByCode(ctx context.Context, code string) (LoginResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return LoginResult{}, ErrEmptyCode
	}

	var res LoginResult
	err := c.gw.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      RouteLoginByCode,
		Body:      codeRequest{Code: code},
		Public:    true,
		NoRefresh: true,
	}, &res)
	if err != nil {
		return LoginResult{}, err
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		return LoginResult{}, apperrors.Wrapf(apperrors.ErrLoginRejected, "token pair incomplete")
	}
	if err := c.store.Set(ctx, res.AccessToken, res.RefreshToken); err != nil {
		log.Err(err).Msg("Failed to store mini-program credentials")
		return LoginResult{}, apperrors.Wrapf(apperrors.ErrCredentialStorage, "%v", err)
	}
	return res, nil
}

// BindPhone binds the phone number behind a getPhoneNumber code.
func (c *Client) BindPhone(ctx context.Context, code string) (PhoneBinding, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return PhoneBinding{}, ErrEmptyCode
	}
	var out PhoneBinding
	err := c.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: RouteBindPhone, Body: codeRequest{Code: code}}, &out)
	return out, err
}

func (c *Client) UserInfo(ctx context.Context) (*users.MPUser, error) {
	var u users.MPUser
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: RouteUserMe}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUserInfo(ctx context.Context, update users.MPUserUpdate) (*users.MPUser, error) {
	var u users.MPUser
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodPut, Path: RouteUserMe, Body: update}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout drops the stored credentials. The backend keeps no mini-program session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return apperrors.Wrapf(apperrors.ErrCredentialStorage, "%v", err)
	}
	return nil
}
