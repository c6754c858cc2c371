package users

// Status is the enabled flag the backend uses for admin users, roles and menus.
type Status int

const (
	StatusDisabled Status = 0
	StatusEnabled  Status = 1
)

// User is the admin console profile returned by /api/v1/admin/auth/me and the
// user management endpoints.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	RealName  string `json:"real_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Status    Status `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`

	// Permissions is nil when the payload carries no permissions field; an
	// explicit empty list decodes to an empty, non-nil slice.
	Permissions []string `json:"permissions,omitempty"`
	Roles       []Role   `json:"roles,omitempty"`
}

// Role is the short role reference embedded in a user profile.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// HasPermissionList reports whether the profile carried its own permission list.
func (u *User) HasPermissionList() bool {
	return u != nil && u.Permissions != nil
}

func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.RealName != "" {
		return u.RealName
	}
	return u.Username
}

// UserCreate is the payload for creating an admin user.
type UserCreate struct {
	Username string `json:"username"`
	Password string `json:"password"`
	RealName string `json:"real_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Status   Status `json:"status"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	RealName *string `json:"real_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Status   *Status `json:"status,omitempty"`
}
