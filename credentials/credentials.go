package credentials

import "context"

// Default storage keys. They match the keys the browser console and the
// mini-program persist, so an existing device store can be read as-is.
const (
	AccessTokenKey   = "access_token"
	RefreshTokenKey  = "refresh_token"
	MPAccessTokenKey = "token"
)

// Keys names the two durable entries a Store writes.
type Keys struct {
	Access  string
	Refresh string
}

// AdminKeys is the key set used by the admin console.
func AdminKeys() Keys {
	return Keys{Access: AccessTokenKey, Refresh: RefreshTokenKey}
}

// MiniProgramKeys is the key set used by the mini-program client.
func MiniProgramKeys() Keys {
	return Keys{Access: MPAccessTokenKey, Refresh: RefreshTokenKey}
}

// Record is the persisted credential pair. Both tokens are opaque.
type Record struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Authenticated reports whether both tokens are present. A record missing
// either one is treated as unauthenticated.
func (r Record) Authenticated() bool {
	return r.AccessToken != "" && r.RefreshToken != ""
}

// Empty reports whether nothing is stored.
func (r Record) Empty() bool {
	return r.AccessToken == "" && r.RefreshToken == ""
}

// Store persists the credential record on the client device. Every write is
// durable when the call returns. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored record; a missing record is the zero Record, not an error.
	Get(ctx context.Context) (Record, error)

	// Set stores both tokens (login).
	Set(ctx context.Context, accessToken, refreshToken string) error

	// SetAccessToken replaces the access token and leaves the refresh token untouched (refresh).
	SetAccessToken(ctx context.Context, accessToken string) error

	// Clear removes both tokens.
	Clear(ctx context.Context) error
}
