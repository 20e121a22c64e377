package utils // package utils provides session token and password helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robertos-pos/bc-bridge/internal/model"
)

// Session is the identity carried inside a signed session token and
// returned to clients from /auth/me.
type Session struct {
	UID  string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// NewSessionToken signs an HS256 JWT for the user. Claims follow the
// bridge's historical shape: uid, name, role, plus exp and iat.
func NewSessionToken(secret string, u model.User, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"uid":  u.ID,
		"name": u.Name,
		"role": u.Role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseSessionToken verifies the signature and expiry and returns the
// embedded session. Only HMAC-signed tokens are accepted.
func ParseSessionToken(secret, raw string) (Session, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Session{}, errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, errors.New("invalid claims")
	}
	s := Session{
		UID:  claimString(claims, "uid"),
		Name: claimString(claims, "name"),
		Role: claimString(claims, "role"),
	}
	if s.UID == "" {
		return Session{}, errors.New("invalid claims")
	}
	return s, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
