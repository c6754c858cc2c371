package users

// MPUser is the mini-program profile returned by /api/v1/mp/user/me.
type MPUser struct {
	ID        int64  `json:"id"`
	OpenID    string `json:"openid"`
	Nickname  string `json:"nickname,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Gender    *int   `json:"gender,omitempty"`
	Country   string `json:"country,omitempty"`
	Province  string `json:"province,omitempty"`
	City      string `json:"city,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PhoneBound reports whether a phone number has been bound to the account.
func (u *MPUser) PhoneBound() bool {
	return u != nil && u.Phone != ""
}

// MPUserUpdate is a partial profile update; nil fields are left unchanged.
type MPUserUpdate struct {
	Nickname *string `json:"nickname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}
