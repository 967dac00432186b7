package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/observability"
)

type DietPlansRepo struct {
	pool    *pgxpool.Pool
	metrics *observability.Prom
}

// NewDietPlansRepo builds the repo; metrics may be nil.
func NewDietPlansRepo(pool *pgxpool.Pool, metrics *observability.Prom) *DietPlansRepo {
	return &DietPlansRepo{pool: pool, metrics: metrics}
}

func (r *DietPlansRepo) observe(op string, fn func() error) error {
	if r.metrics == nil {
		return fn()
	}

	return r.metrics.ObserveDB(op, fn)
}

// Append publishes a new plan entry with a server-assigned id and timestamp.
// The collection is append-only; entries are never reordered.
func (r *DietPlansRepo) Append(ctx context.Context, userID string, req user.PublishPlanRequest) (user.DietPlan, error) {
	p := user.DietPlan{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Goal:        req.Goal,
		Description: req.Description,
		Data:        req.Data,
		CreatedAt:   time.Now().UTC(),
	}

	err := r.observe("diet_plans.append", func() error {
		_, err := r.pool.Exec(
			ctx,
			`INSERT INTO diet_plans (id, user_id, title, goal, description, data, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.UserID, p.Title, p.Goal, p.Description, p.Data, p.CreatedAt,
		)
		return err
	})

	if err != nil {
		return user.DietPlan{}, err
	}

	return p, nil
}

func (r *DietPlansRepo) ListByUser(ctx context.Context, userID string) ([]user.DietPlan, error) {
	var output []user.DietPlan

	err := r.observe("diet_plans.list_by_user", func() error {
		rows, err := r.pool.Query(
			ctx,
			`SELECT id, user_id, title, goal, description, data, created_at
			 FROM diet_plans
			 WHERE user_id = $1
			 ORDER BY created_at ASC, id ASC`,
			userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		output = make([]user.DietPlan, 0)

		for rows.Next() {
			var p user.DietPlan

			err = rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Goal, &p.Description, &p.Data, &p.CreatedAt)

			if err != nil {
				return err
			}

			output = append(output, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

// Delete removes one entry scoped to the owning user. Unknown ids are a
// no-op, not an error.
func (r *DietPlansRepo) Delete(ctx context.Context, userID, planID string) error {
	return r.observe("diet_plans.delete", func() error {
		_, err := r.pool.Exec(
			ctx,
			`DELETE FROM diet_plans WHERE id = $1 AND user_id = $2`,
			planID, userID,
		)
		return err
	})
}
