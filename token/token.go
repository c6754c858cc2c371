package token

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const bearerType = "Bearer"

var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the unverified view of a backend-issued access or refresh token.
// The client never verifies signatures; these values are informational only.
type Claims struct {
	Subject   string
	Type      string // "access" or "refresh"
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is in the past. Tokens without
// an exp claim never expire from the client's point of view.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime, zero when expired or unknown.
func (c Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt.IsZero() || now.After(c.ExpiresAt) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Inspect decodes the claims of a JWT without verifying it. Opaque tokens
// return ErrNotJWT.
func Inspect(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return Claims{}, ErrNotJWT
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.New("error extracting claims")
	}

	var claims Claims
	switch sub := mc["sub"].(type) {
	case string:
		claims.Subject = sub
	case float64:
		claims.Subject = fmt.Sprintf("%.0f", sub)
	}
	claims.Type, _ = mc["type"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	return claims, nil
}

// Bearer wraps an access token as an oauth2 bearer token.
func Bearer(accessToken string) *oauth2.Token {
	return &oauth2.Token{AccessToken: accessToken, TokenType: bearerType}
}

// Authorize sets "Authorization: Bearer <token>" on req, or removes the header
// when accessToken is empty.
func Authorize(req *http.Request, accessToken string) {
	if accessToken == "" {
		req.Header.Del("Authorization")
		return
	}
	Bearer(accessToken).SetAuthHeader(req)
}

// FromHeader extracts the bearer token from an Authorization header value.
func FromHeader(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerType) {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
