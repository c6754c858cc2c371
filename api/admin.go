package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-admin-session/gateway"
	"github.com/jrsteele09/go-admin-session/menus"
	"github.com/jrsteele09/go-admin-session/users"
	"github.com/pkg/errors"
)

const (
	RouteMenus       = "/api/v1/admin/menus"
	RouteUsers       = "/api/v1/admin/users"
	RouteRoles       = "/api/v1/admin/roles"
	RoutePermissions = "/api/v1/admin/permissions"
)

// Client groups the admin management resources.
type Client struct {
	Menus       *Menus
	Users       *Users
	Roles       *Roles
	Permissions *Permissions
}

func New(caller gateway.Caller) (*Client, error) {
	if caller == nil {
		return nil, errors.New("[api New] gateway is required")
	}
	return &Client{
		Menus:       &Menus{Resource: NewResource[Menu, MenuCreate, MenuUpdate](caller, RouteMenus)},
		Users:       &Users{Resource: NewResource[users.User, users.UserCreate, users.UserUpdate](caller, RouteUsers)},
		Roles:       &Roles{Resource: NewResource[Role, RoleCreate, RoleUpdate](caller, RouteRoles)},
		Permissions: &Permissions{Resource: NewResource[Permission, PermissionCreate, PermissionUpdate](caller, RoutePermissions)},
	}, nil
}

type Menus struct {
	*Resource[Menu, MenuCreate, MenuUpdate]
}

// Tree returns every menu as a tree. Disabled menus are left out unless
// includeDisabled is set.
func (m *Menus) Tree(ctx context.Context, includeDisabled bool) ([]Menu, error) {
	var tree []Menu
	err := m.caller.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   m.path + "/tree",
		Query:  url.Values{"include_disabled": {strconv.FormatBool(includeDisabled)}},
	}, &tree)
	return tree, err
}

// My returns the signed-in user's menu tree in route form.
func (m *Menus) My(ctx context.Context) ([]menus.Node, error) {
	var nodes []menus.Node
	err := m.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: m.path + "/my"}, &nodes)
	return nodes, err
}

func (m *Menus) UpdateSort(ctx context.Context, id int64, sort int) error {
	return m.caller.Do(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   m.itemPath(id, "sort"),
		Body:   map[string]int{"sort": sort},
	}, nil)
}

type Users struct {
	*Resource[users.User, users.UserCreate, users.UserUpdate]
}

func (u *Users) ResetPassword(ctx context.Context, id int64, password string) error {
	return u.caller.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   u.itemPath(id, "reset-password"),
		Body:   map[string]string{"password": password},
	}, nil)
}

// AssignRoles replaces the user's roles.
func (u *Users) AssignRoles(ctx context.Context, id int64, roleIDs []int64) error {
	return u.caller.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   u.itemPath(id, "roles"),
		Body:   map[string][]int64{"role_ids": nonNil(roleIDs)},
	}, nil)
}

type Roles struct {
	*Resource[Role, RoleCreate, RoleUpdate]
}

// AssignPermissions replaces the role's permissions.
func (r *Roles) AssignPermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	return r.caller.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   r.itemPath(id, "permissions"),
		Body:   map[string][]int64{"permission_ids": nonNil(permissionIDs)},
	}, nil)
}

// AssignMenus replaces the role's menus.
func (r *Roles) AssignMenus(ctx context.Context, id int64, menuIDs []int64) error {
	return r.caller.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   r.itemPath(id, "menus"),
		Body:   map[string][]int64{"menu_ids": nonNil(menuIDs)},
	}, nil)
}

func (r *Roles) Permissions(ctx context.Context, id int64) ([]Permission, error) {
	var perms []Permission
	err := r.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: r.itemPath(id, "permissions")}, &perms)
	return perms, err
}

func (r *Roles) Menus(ctx context.Context, id int64) ([]Menu, error) {
	var out []Menu
	err := r.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: r.itemPath(id, "menus")}, &out)
	return out, err
}

type Permissions struct {
	*Resource[Permission, PermissionCreate, PermissionUpdate]
}

func (p *Permissions) Tree(ctx context.Context) ([]Permission, error) {
	var tree []Permission
	err := p.caller.Do(ctx, gateway.Request{Method: http.MethodGet, Path: p.path + "/tree"}, &tree)
	return tree, err
}

// nonNil keeps an empty assignment encoded as [] rather than null, which
// clears the links instead of failing validation.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
