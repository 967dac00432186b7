package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/session"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifySessionToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt     TokenVerifier
	revoker session.Revoker
}

func NewAuthMiddleware(jwt TokenVerifier, revoker session.Revoker) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, revoker: revoker}
}

// RequireSession authorizes a request from the session cookie. A missing
// cookie is 401; a present but malformed, expired or revoked one is 403.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookieName)
		if err != nil || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Unauthorized",
				},
			})
			return
		}

		claims, err := m.jwt.VerifySessionToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "invalid_session",
					"message": "Invalid token",
				},
			})
			return
		}

		if m.revoker != nil {
			revoked, err := m.revoker.IsRevoked(c.Request.Context(), claims.JTI)

			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":    "internal_error",
						"message": "Could not validate session",
					},
				})
				return
			}

			if revoked {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": gin.H{
						"code":    "session_revoked",
						"message": "Invalid token",
					},
				})
				return
			}
		}

		SetIdentity(c, claims.UserID, claims.Username, claims.Email, claims.JTI)

		c.Next()
	}
}

// SetIdentity stashes the session identity on the request context. Exposed
// so handler tests can authorize requests without minting tokens.
func SetIdentity(c *gin.Context, userID, username, email, jti string) {
	c.Set(ctxUserIDKey, userID)
	c.Set(ctxUsernameKey, username)
	c.Set(ctxEmailKey, email)
	c.Set(ctxJTIKey, jti)
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func UsernameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUsernameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

func JTIFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxJTIKey)
	if !ok {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

// SessionTTLRemaining reports how long the presented token stays valid, for
// sizing the revocation record on logout.
func SessionTTLRemaining(claims *auth.Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}
