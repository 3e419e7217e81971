package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account record. Password and RefreshToken never
// leave the service layer: RefreshToken is nil when the user has no active
// session (logout unsets it, every refresh overwrites it).
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"full_name"`
	AvatarURL     string    `db:"avatar_url" json:"avatar_url"`
	CoverImageURL string    `db:"cover_image_url" json:"cover_image_url"`
	Password      []byte    `db:"password" json:"-"`
	RefreshToken  *string   `db:"refresh_token" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the sanitized user snapshot handed to handlers by the auth
// middleware and returned on profile reads.
type Identity struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url"`
	CreatedAt     time.Time `json:"created_at"`
}

func (u User) Identity() Identity {
	return Identity{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}
