package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/http/middlewares"
	"github.com/nutriplan/nutriplan/internal/repo/postgres"
	"github.com/nutriplan/nutriplan/internal/security"
	"github.com/nutriplan/nutriplan/internal/session"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, username, email, passwordHash string, isGoogleUser bool) (user.User, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	revoker    session.Revoker
	cfg        config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, revoker session.Revoker, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		revoker:    revoker,
		cfg:        cfg,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	existing, err := h.users.GetByEmail(cctx, req.Email)

	if err == nil {
		if existing.IsGoogleUser {
			RespondConflict(ctx, "email_taken", "This email is already registered via Google. Please log in with Google.")
			return
		}

		RespondConflict(ctx, "email_taken", "This email is already registered. Please log in.")
		return
	}

	if !errors.Is(err, postgres.ErrUserNotFound) {
		RespondInternal(ctx, "Registration failed")
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Registration failed")
		return
	}

	_, err = h.userWriter.Create(cctx, req.Username, req.Email, hash, false)

	if err != nil {
		// the unique index closes the lookup/insert race
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			RespondConflict(ctx, "email_taken", "This email is already registered. Please log in.")
			return
		}

		RespondInternal(ctx, "Registration failed")
		return
	}

	// registration does not log the user in
	ctx.JSON(http.StatusOK, gin.H{"message": "User registered successfully"})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Login failed")
		return
	}

	// federated accounts carry a sentinel instead of a hash, so this also
	// refuses password logins for Google-issued accounts
	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Incorrect password")
		return
	}

	if !h.issueSession(ctx, foundUser) {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"id":       foundUser.ID,
		"username": foundUser.Username,
		"message":  "Login successful",
	})
}

// GoogleLogin is an idempotent upsert: first call creates the federated
// account, every later call is a plain login. The email claim is trusted
// as-is; verifying the provider's signed assertion is a known gap.
func (h *AuthHandler) GoogleLogin(ctx *gin.Context) {
	var req GoogleLoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)

	if errors.Is(err, postgres.ErrUserNotFound) {
		foundUser, err = h.userWriter.Create(cctx, req.Username, req.Email, security.GooglePlaceholder, true)

		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			// lost the race to a concurrent first login; the account exists now
			foundUser, err = h.users.GetByEmail(cctx, req.Email)
		}
	}

	if err != nil {
		RespondInternal(ctx, "Internal Server Error")
		return
	}

	if !h.issueSession(ctx, foundUser) {
		return
	}

	ctx.JSON(http.StatusOK, foundUser.Profile())
}

// Logout clears the cookie and revokes the presented session for the rest of
// its lifetime, so the token cannot be replayed afterwards.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(middlewares.SessionCookieName)

	if err == nil && raw != "" {
		claims, verifyErr := h.jwt.VerifySessionToken(raw)

		if verifyErr == nil && h.revoker != nil {
			cctx, cancel := config.WithTimeout(2 * time.Second)
			defer cancel()

			// best effort; logout succeeds regardless
			_ = h.revoker.Revoke(cctx, claims.JTI, middlewares.SessionTTLRemaining(claims))
		}
	}

	h.clearSessionCookie(ctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Helper functions

func (h *AuthHandler) issueSession(ctx *gin.Context, u user.User) bool {
	raw, _, expiresAt, err := h.jwt.GenerateSessionToken(u.ID, u.Username, u.Email)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return false
	}

	h.setSessionCookie(ctx, raw, expiresAt)
	return true
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		middlewares.SessionCookieName,
		raw,
		maxAge,
		"/",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		middlewares.SessionCookieName,
		"",
		-1,
		"/",
		"",
		secure,
		true,
	)
}
