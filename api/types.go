package api

import "github.com/jrsteele09/go-admin-session/users"

// Flag is a 0/1 integer switch as stored by the backend.
type Flag int

func (f Flag) Bool() bool {
	return f != 0
}

func FlagOf(b bool) Flag {
	if b {
		return 1
	}
	return 0
}

// Menu is a menu row as managed by the menu endpoints. Children is only
// populated by the tree endpoint.
type Menu struct {
	ID        int64        `json:"id"`
	ParentID  int64        `json:"parent_id"`
	Title     string       `json:"title"`
	Name      string       `json:"name"`
	Path      string       `json:"path,omitempty"`
	Component string       `json:"component,omitempty"`
	Icon      string       `json:"icon,omitempty"`
	Sort      int          `json:"sort"`
	Hidden    Flag         `json:"hidden"`
	KeepAlive Flag         `json:"keep_alive"`
	Status    users.Status `json:"status"`
	CreatedAt string       `json:"created_at,omitempty"`
	Children  []Menu       `json:"children,omitempty"`
}

type MenuCreate struct {
	ParentID  int64        `json:"parent_id"`
	Title     string       `json:"title"`
	Name      string       `json:"name"`
	Path      string       `json:"path,omitempty"`
	Component string       `json:"component,omitempty"`
	Icon      string       `json:"icon,omitempty"`
	Sort      int          `json:"sort"`
	Hidden    Flag         `json:"hidden"`
	KeepAlive Flag         `json:"keep_alive"`
	Status    users.Status `json:"status"`
}

// MenuUpdate is a partial update; nil fields are left unchanged.
type MenuUpdate struct {
	ParentID  *int64        `json:"parent_id,omitempty"`
	Title     *string       `json:"title,omitempty"`
	Name      *string       `json:"name,omitempty"`
	Path      *string       `json:"path,omitempty"`
	Component *string       `json:"component,omitempty"`
	Icon      *string       `json:"icon,omitempty"`
	Sort      *int          `json:"sort,omitempty"`
	Hidden    *Flag         `json:"hidden,omitempty"`
	KeepAlive *Flag         `json:"keep_alive,omitempty"`
	Status    *users.Status `json:"status,omitempty"`
}

type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	Description string       `json:"description,omitempty"`
	Status      users.Status `json:"status"`
	CreatedAt   string       `json:"created_at,omitempty"`
}

type RoleCreate struct {
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	Description string       `json:"description,omitempty"`
	Status      users.Status `json:"status"`
}

// RoleUpdate is a partial update. The role code cannot be changed.
type RoleUpdate struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *users.Status `json:"status,omitempty"`
}

// PermissionType classifies what a permission code guards.
type PermissionType string

const (
	PermissionMenu   PermissionType = "MENU"
	PermissionButton PermissionType = "BUTTON"
	PermissionAPI    PermissionType = "API"
)

type Permission struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	Type        PermissionType `json:"type"`
	Description string         `json:"description,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

type PermissionCreate struct {
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	Type        PermissionType `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
}

// PermissionUpdate is a partial update. The permission code cannot be changed.
type PermissionUpdate struct {
	Name        *string         `json:"name,omitempty"`
	Type        *PermissionType `json:"type,omitempty"`
	Description *string         `json:"description,omitempty"`
}
