package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/observability"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("email already used")
)

const userColumns = `id, username, email, password_hash, is_google_user,
	age, height, weight, gender, fitness_goal, dietary_preferences,
	latest_plan, created_at, updated_at`

type UsersRepo struct {
	pool    *pgxpool.Pool
	metrics *observability.Prom
}

// NewUsersRepo builds the repo; metrics may be nil.
func NewUsersRepo(pool *pgxpool.Pool, metrics *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, metrics: metrics}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.metrics == nil {
		return fn()
	}

	return r.metrics.ObserveDB(op, fn)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsGoogleUser,
		&u.Age,
		&u.Height,
		&u.Weight,
		&u.Gender,
		&u.FitnessGoal,
		&u.DietaryPreferences,
		&u.LatestPlan,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, username, email, passwordHash string, isGoogleUser bool) (user.User, error) {
	now := time.Now().UTC()

	var u user.User

	err := r.observe("users.create", func() error {
		row := r.pool.QueryRow(
			ctx,
			`INSERT INTO users (id, username, email, password_hash, is_google_user, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $6)
			 RETURNING `+userColumns,
			uuid.NewString(), username, email, passwordHash, isGoogleUser, now,
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError

		// unique_violation on the email index
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		row := r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		row := r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	return u, err
}

// UpdateProfile overwrites the six optional attributes for the given user id.
// Mutations are keyed by the immutable id, never by email.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error) {
	var u user.User

	err := r.observe("users.update_profile", func() error {
		row := r.pool.QueryRow(
			ctx,
			`UPDATE users
				SET age = $2,
					height = $3,
					weight = $4,
					gender = $5,
					fitness_goal = $6,
					dietary_preferences = $7,
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id,
			upd.Age,
			upd.Height,
			upd.Weight,
			upd.Gender,
			upd.FitnessGoal,
			upd.DietaryPreferences,
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	return u, err
}

// SetLatestPlan replaces the scratch plan wholesale (last-write-wins).
func (r *UsersRepo) SetLatestPlan(ctx context.Context, id string, payload json.RawMessage) (user.User, error) {
	var u user.User

	err := r.observe("users.set_latest_plan", func() error {
		row := r.pool.QueryRow(
			ctx,
			`UPDATE users
				SET latest_plan = $2,
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id,
			payload,
		)

		var err error
		u, err = scanUser(row)
		return err
	})

	return u, err
}
