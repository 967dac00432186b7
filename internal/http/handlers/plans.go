package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/http/middlewares"
	"github.com/nutriplan/nutriplan/internal/repo/postgres"
)

type LatestPlanStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	SetLatestPlan(ctx context.Context, id string, payload json.RawMessage) (user.User, error)
}

type PlanStore interface {
	Append(ctx context.Context, userID string, req user.PublishPlanRequest) (user.DietPlan, error)
	ListByUser(ctx context.Context, userID string) ([]user.DietPlan, error)
	Delete(ctx context.Context, userID, planID string) error
}

type PlansHandler struct {
	users LatestPlanStore
	plans PlanStore
}

func NewPlansHandler(users LatestPlanStore, plans PlanStore) *PlansHandler {
	return &PlansHandler{users: users, plans: plans}
}

// CreateDietPlan replaces the user's scratch plan wholesale. The payload is
// an opaque blob; anything that parses as JSON is accepted.
func (h *PlansHandler) CreateDietPlan(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	var payload json.RawMessage

	if !BindJSON(ctx, &payload) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.SetLatestPlan(cctx, id, payload)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Error saving diet plan")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":        "Diet plan saved",
		"latestDietPlan": u.LatestPlan,
	})
}

func (h *PlansHandler) LatestDietPlan(ctx *gin.Context) {
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

		RespondInternal(ctx, "Error fetching diet plan")
		return
	}

	if len(u.LatestPlan) == 0 {
		RespondNotFound(ctx, "No diet plan found")
		return
	}

	ctx.Data(http.StatusOK, "application/json", u.LatestPlan)
}

func (h *PlansHandler) PublishPlan(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	var req user.PublishPlanRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	_, err := h.plans.Append(cctx, id, req)

	if err != nil {
		RespondInternal(ctx, "Failed to save plan")
		return
	}

	plans, err := h.plans.ListByUser(cctx, id)

	if err != nil {
		RespondInternal(ctx, "Failed to save plan")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Plan published successfully",
		"plans":   plans,
	})
}

func (h *PlansHandler) MyPlans(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	plans, err := h.plans.ListByUser(cctx, id)

	if err != nil {
		RespondInternal(ctx, "Failed to load plans")
		return
	}

	ctx.JSON(http.StatusOK, plans)
}

// DeletePlan removes one published entry, scoped to the session user. An
// unknown or malformed id deletes nothing and still succeeds.
func (h *PlansHandler) DeletePlan(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	planID := ctx.Param("planId")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// non-uuid ids cannot match any row, skip the round trip
	if _, err := uuid.Parse(planID); err == nil {
		if err := h.plans.Delete(cctx, id, planID); err != nil {
			RespondInternal(ctx, "Failed to delete plan")
			return
		}
	}

	plans, err := h.plans.ListByUser(cctx, id)

	if err != nil {
		RespondInternal(ctx, "Failed to delete plan")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Plan deleted successfully",
		"plans":   plans,
	})
}
