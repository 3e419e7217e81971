package repository

import (
	"context"

	"vidhub/internal/domain/models"

	"github.com/google/uuid"
)

type UserRepository interface {
	SaveUser(ctx context.Context, user models.User) (uuid.UUID, error)
	UserByIdentifier(ctx context.Context, identifier string) (models.User, error)
	UserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email *string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, coverImageURL string) (models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash []byte) error
}

// SessionRepository reads and writes the single refresh_token column on the
// user row. The writes touch nothing else on the record.
type SessionRepository interface {
	SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
	RefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
}

type ChannelRepository interface {
	ChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchHistoryItem, error)
	AddWatchEvent(ctx context.Context, userID, videoID uuid.UUID) error
}

// IdentityProvider is the read path the auth middleware uses for the
// per-request user lookup.
type IdentityProvider interface {
	Identity(ctx context.Context, userID uuid.UUID) (models.Identity, error)
}
