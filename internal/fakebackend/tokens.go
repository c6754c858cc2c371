package fakebackend

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	refreshTTL       = 7 * 24 * time.Hour
)

func (b *Backend) mint(subject, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub":  subject,
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", tokenType, err)
	}
	return signed, nil
}

// issueAccess mints an access token and records it as valid. b.mu must be held.
func (b *Backend) issueAccess(subject string) (string, error) {
	tok, err := b.mint(subject, tokenTypeAccess, b.accessTTL)
	if err != nil {
		return "", err
	}
	b.access[tok] = true
	return tok, nil
}

// issueRefresh mints a refresh token and records it as valid. b.mu must be held.
func (b *Backend) issueRefresh(subject string) (string, error) {
	tok, err := b.mint(subject, tokenTypeRefresh, refreshTTL)
	if err != nil {
		return "", err
	}
	b.refresh[tok] = true
	return tok, nil
}

// verify checks the signature and type of a token the backend issued.
func (b *Backend) verify(raw, tokenType string) (string, error) {
	parsed, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	if typ, _ := claims["type"].(string); typ != tokenType {
		return "", fmt.Errorf("expected %s token, got %q", tokenType, typ)
	}
	sub, _ := claims.GetSubject()
	return sub, nil
}
