package user

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never expose hash in JSON
	IsGoogleUser bool   `json:"isGoogleUser"`

	// optional profile attributes, each independently unset
	Age                *int    `json:"age,omitempty"`
	Height             *int    `json:"height,omitempty"`
	Weight             *int    `json:"weight,omitempty"`
	Gender             *string `json:"gender,omitempty"`
	FitnessGoal        *string `json:"fitnessGoal,omitempty"`
	DietaryPreferences *string `json:"dietaryPreferences,omitempty"`

	// scratch plan, overwritten wholesale on every save
	LatestPlan json.RawMessage `json:"latestDietPlan,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the projection returned to the client. Unset attributes come
// back as empty strings (gender defaults to "female") so the form wizard can
// bind them directly.
type Profile struct {
	Username           string          `json:"username"`
	Email              string          `json:"email"`
	LatestDietPlan     json.RawMessage `json:"latestDietPlan"`
	Age                any             `json:"age"`
	Height             any             `json:"height"`
	Weight             any             `json:"weight"`
	Gender             string          `json:"gender"`
	FitnessGoal        string          `json:"fitnessGoal"`
	DietaryPreferences string          `json:"dietaryPreferences"`
}

func (u User) Profile() Profile {
	p := Profile{
		Username:       u.Username,
		Email:          u.Email,
		LatestDietPlan: u.LatestPlan,
		Age:            "",
		Height:         "",
		Weight:         "",
		Gender:         "female",
	}

	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Height != nil {
		p.Height = *u.Height
	}
	if u.Weight != nil {
		p.Weight = *u.Weight
	}
	if u.Gender != nil && *u.Gender != "" {
		p.Gender = *u.Gender
	}
	if u.FitnessGoal != nil {
		p.FitnessGoal = *u.FitnessGoal
	}
	if u.DietaryPreferences != nil {
		p.DietaryPreferences = *u.DietaryPreferences
	}

	return p
}

// ProfileUpdate overwrites exactly the six optional attributes; a nil field
// clears the stored value.
type ProfileUpdate struct {
	Age                *int    `json:"age"`
	Height             *int    `json:"height"`
	Weight             *int    `json:"weight"`
	Gender             *string `json:"gender" binding:"omitempty,oneof=male female"`
	FitnessGoal        *string `json:"fitnessGoal"`
	DietaryPreferences *string `json:"dietaryPreferences"`
}

// DietPlan is a published, named snapshot of a generated plan. The payload
// stays an opaque JSON blob end to end.
type DietPlan struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Title       string          `json:"title"`
	Goal        string          `json:"goal"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"date"`
}

type PublishPlanRequest struct {
	Title       string          `json:"title" binding:"required"`
	Goal        string          `json:"goal"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}
