package types

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	UserID          uuid.UUID `json:"user_id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	DisplayName     *string   `json:"display_name,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	CurrentCitySlug *string   `json:"current_city_slug,omitempty"`
	AvatarKey       *string   `json:"-"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpdateProfileParams defines the fields allowed for profile updates.
// Pointers distinguish "not provided" from an empty value.
type UpdateProfileParams struct {
	DisplayName     *string `json:"display_name,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	CurrentCitySlug *string `json:"current_city_slug,omitempty"`
}
