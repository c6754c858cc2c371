package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-session/auth"
	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/gateway"
	apperrors "github.com/jrsteele09/go-admin-session/internal/errors"
	"github.com/jrsteele09/go-admin-session/menus"
	"github.com/jrsteele09/go-admin-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey            = "refresh"
	defaultRefreshTimeout = 30 * time.Second
)

// MenuNode is an entry of the signed-in user's menu tree.
type MenuNode = menus.Node

// ExtractPermissions collects permission codes from a menu tree depth-first.
func ExtractPermissions(nodes []MenuNode) []string {
	return menus.ExtractPermissions(nodes)
}

// RouteResetter drops routes projected from a previous session's menus.
type RouteResetter interface {
	Reset()
}

// Identity is a copy of the signed-in user's profile, permissions and menus.
type Identity struct {
	User        *users.User
	Permissions []string
	Menus       []MenuNode
}

// Controller owns the admin session. It is the only writer of the credential
// store and implements gateway.Refresher.
type Controller struct {
	api    *auth.API
	store  credentials.Store
	routes RouteResetter
	group  singleflight.Group

	refreshTimeout time.Duration

	// writeMu orders credential writes; generation changes whenever the
	// stored session is replaced or cleared.
	writeMu    sync.Mutex
	generation uint64

	mu          sync.RWMutex
	user        *users.User
	permissions map[string]struct{}
	menus       []MenuNode
}

var _ gateway.Refresher = (*Controller)(nil)

type ControllerOption func(*Controller)

// WithRefreshTimeout bounds a refresh. The refresh runs detached from the
// caller's context, so this is its only deadline.
func WithRefreshTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) {
		if timeout > 0 {
			c.refreshTimeout = timeout
		}
	}
}

// WithRouteResetter registers the router whose projected routes are dropped on logout.
func WithRouteResetter(r RouteResetter) ControllerOption {
	return func(c *Controller) {
		c.routes = r
	}
}

func NewController(api *auth.API, store credentials.Store, options ...ControllerOption) (*Controller, error) {
	if api == nil {
		return nil, errors.New("[NewController] auth API is required")
	}
	if store == nil {
		return nil, errors.New("[NewController] credential store is required")
	}
	c := &Controller{
		api:            api,
		store:          store,
		refreshTimeout: defaultRefreshTimeout,
		permissions:    make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// New builds a Controller on top of gw and registers it as gw's refresher.
func New(gw *gateway.Gateway, options ...ControllerOption) (*Controller, error) {
	if gw == nil {
		return nil, errors.New("[sessions New] gateway is required")
	}
	api, err := auth.New(gw)
	if err != nil {
		return nil, err
	}
	c, err := NewController(api, gw.Store(), options...)
	if err != nil {
		return nil, err
	}
	gw.SetRefresher(c)
	return c, nil
}

// Login authenticates, stores both tokens and then loads the profile and the
// menu tree. It reports false only when no tokens were stored; a failure to
// load the profile or menus afterwards is logged and leaves the tokens in place.
func (c *Controller) Login(ctx context.Context, username, password string) bool {
	pair, err := c.api.Login(ctx, auth.Credentials{Username: username, Password: password})
	if err != nil {
		log.Err(err).Str("username", username).Msg("Login failed")
		return false
	}
	if !pair.Complete() {
		log.Error().Str("username", username).Msg("Login response is missing a token")
		return false
	}
	if err := c.storeSession(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		log.Err(err).Str("username", username).Msg("Failed to store credentials")
		return false
	}

	if err := c.FetchUserInfo(ctx); err != nil {
		log.Err(err).Str("username", username).Msg("Failed to load user info after login")
	}
	if err := c.FetchMenus(ctx); err != nil {
		log.Err(err).Str("username", username).Msg("Failed to load menus after login")
	}
	log.Info().Str("username", username).Msg("Logged in")
	return true
}

// Refresh exchanges the stored refresh token for a new access token and stores
// it. It returns "" and a nil error when no refresh token is stored. Errors are
// returned unchanged. Concurrent callers share one backend call, which keeps
// running when the caller that started it gives up.
func (c *Controller) Refresh(ctx context.Context) (string, error) {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Controller) refresh(ctx context.Context) (string, error) {
	gen := c.currentGeneration()
	rec, err := c.store.Get(ctx)
	if err != nil {
		return "", apperrors.Wrapf(err, "reading refresh token")
	}
	if rec.RefreshToken == "" {
		return "", nil
	}

	tok, err := c.api.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", apperrors.ErrRefreshRejected
	}
	if err := c.storeAccessToken(ctx, gen, rec.RefreshToken, tok.AccessToken); err != nil {
		return "", err
	}
	log.Debug().Msg("Access token refreshed")
	return tok.AccessToken, nil
}

func (c *Controller) currentGeneration() uint64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.generation
}

// storeSession replaces the stored token pair and starts a new session generation.
func (c *Controller) storeSession(ctx context.Context, accessToken, refreshToken string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.generation++
	return c.store.Set(ctx, accessToken, refreshToken)
}

// storeAccessToken writes a refreshed access token only while the session it
// was exchanged for is still the stored one. Otherwise the token is dropped so
// the store never holds an access token without its refresh token.
func (c *Controller) storeAccessToken(ctx context.Context, gen uint64, refreshToken, accessToken string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.generation != gen {
		log.Warn().Msg("Session changed during refresh, dropping refreshed token")
		return apperrors.ErrSessionExpired
	}
	rec, err := c.store.Get(ctx)
	if err != nil {
		return apperrors.Wrapf(err, "re-reading refresh token")
	}
	if rec.RefreshToken != refreshToken {
		log.Warn().Msg("Stored refresh token changed during refresh, dropping refreshed token")
		return apperrors.ErrSessionExpired
	}
	if err := c.store.SetAccessToken(ctx, accessToken); err != nil {
		return apperrors.Wrapf(err, "storing refreshed access token")
	}
	return nil
}

// Logout tells the backend to drop the refresh token and then clears the local
// session. The local cleanup always runs, whatever the backend call does.
func (c *Controller) Logout(ctx context.Context) {
	defer c.clear(ctx)

	rec, err := c.store.Get(ctx)
	if err != nil {
		log.Err(err).Msg("Failed to read credentials on logout")
		return
	}
	if rec.RefreshToken == "" {
		return
	}
	if err := c.api.Logout(ctx, rec.RefreshToken); err != nil {
		log.Err(err).Msg("Backend logout failed")
	}
}

func (c *Controller) clear(ctx context.Context) {
	c.writeMu.Lock()
	c.generation++
	if err := c.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear credentials")
	}
	c.writeMu.Unlock()

	c.mu.Lock()
	c.user = nil
	c.permissions = make(map[string]struct{})
	c.menus = nil
	c.mu.Unlock()

	if c.routes != nil {
		c.routes.Reset()
	}
}

// FetchUserInfo loads the profile. When the profile carries a permission list
// it replaces the permission set.
func (c *Controller) FetchUserInfo(ctx context.Context) error {
	u, err := c.api.Me(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
	if u.HasPermissionList() {
		c.permissions = toSet(u.Permissions)
	}
	return nil
}

// FetchMenus loads the menu tree. Permissions found in the tree replace the
// permission set; an empty result keeps the current set.
func (c *Controller) FetchMenus(ctx context.Context) error {
	nodes, err := c.api.MyMenus(ctx)
	if err != nil {
		return err
	}

	perms := ExtractPermissions(nodes)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menus = nodes
	if len(perms) > 0 {
		c.permissions = toSet(perms)
	}
	return nil
}

// Restore reloads the profile and menus when credentials survived a restart.
func (c *Controller) Restore(ctx context.Context) error {
	ok, err := c.HasToken(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotAuthenticated
	}
	if err := c.FetchUserInfo(ctx); err != nil {
		return err
	}
	return c.FetchMenus(ctx)
}

// HasToken reports whether an access token is stored.
func (c *Controller) HasToken(ctx context.Context) (bool, error) {
	rec, err := c.store.Get(ctx)
	if err != nil {
		return false, err
	}
	return rec.AccessToken != "", nil
}

// HasPermission reports whether any of codes is granted. No codes means no
// requirement, so the result is true.
func (c *Controller) HasPermission(codes ...string) bool {
	if len(codes) == 0 {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, code := range codes {
		if _, ok := c.permissions[code]; ok {
			return true
		}
	}
	return false
}

// Menus returns the current menu tree. The slice must not be modified.
func (c *Controller) Menus() []MenuNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.menus
}

func (c *Controller) Snapshot() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id := Identity{Menus: append([]MenuNode(nil), c.menus...)}
	if c.user != nil {
		u := *c.user
		id.User = &u
	}
	for p := range c.permissions {
		id.Permissions = append(id.Permissions, p)
	}
	sort.Strings(id.Permissions)
	return id
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}
