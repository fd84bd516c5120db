package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client reads from an access token. The signature is
// not checked; the backend remains the authority on validity.
type Claims struct {
	Subject   string
	UserID    string
	Username  string
	ExpiresAt time.Time
}

type accessTokenClaims struct {
	UserID   string `json:"userId,omitempty"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func ParseClaims(accessToken string) (Claims, error) {
	if accessToken == "" {
		return Claims{}, errors.New("access token is empty")
	}

	var parsed accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &parsed); err != nil {
		return Claims{}, fmt.Errorf("parse access token: %w", err)
	}

	claims := Claims{
		Subject:  parsed.Subject,
		Username: parsed.Username,
		UserID:   firstNonEmpty(parsed.UserID, parsed.ID, parsed.Subject),
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}

	return claims, nil
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
