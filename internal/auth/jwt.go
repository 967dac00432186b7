package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by a session token. The user id doubles as the registered
// subject; JTI identifies the session for revocation.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	JTI      string `json:"jti"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	sessionTTL time.Duration
}

func NewManager(secret string, sessionTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
	}
}

// GenerateSessionToken mints a signed token valid for the configured TTL.
// There is no refresh path; clients re-authenticate after expiry.
func (m *Manager) GenerateSessionToken(userID, username, email string) (raw string, jti string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	jti = uuid.NewString()
	expiresAt = now.Add(m.sessionTTL)

	claims := Claims{
		UserID:   userID,
		Username: username,
		Email:    email,
		JTI:      jti,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err = token.SignedString(m.secret)

	return
}

func (m *Manager) VerifySessionToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserID == "" || claims.JTI == "" {
		return nil, errors.New("missing identity claims")
	}

	return claims, nil
}
