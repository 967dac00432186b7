package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/http/middlewares"
	"github.com/nutriplan/nutriplan/internal/repo/postgres"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error)
}

type ProfileHandler struct {
	users ProfileStore
}

func NewProfileHandler(users ProfileStore) *ProfileHandler {
	return &ProfileHandler{users: users}
}

func (h *ProfileHandler) GetProfile(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, u.Profile())
}

func (h *ProfileHandler) UpdateProfile(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	var upd user.ProfileUpdate

	if !BindJSON(ctx, &upd) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, id, upd)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Profile update failed")
		return
	}

	// the update response echoes the attributes without the scratch plan
	p := u.Profile()

	ctx.JSON(http.StatusOK, gin.H{
		"username":           p.Username,
		"email":              p.Email,
		"age":                p.Age,
		"height":             p.Height,
		"weight":             p.Weight,
		"gender":             p.Gender,
		"fitnessGoal":        p.FitnessGoal,
		"dietaryPreferences": p.DietaryPreferences,
	})
}
