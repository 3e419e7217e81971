package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"vidhub/internal/domain/models"
	"vidhub/internal/lib/logger/sl"
	"vidhub/internal/repository"
	"vidhub/internal/storage"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrNothingToUpdate    = errors.New("no fields to update")
	ErrVideoNotFound      = errors.New("video not found")
)

const (
	channelProfileCacheTTL = 30 * time.Second
	cacheCleanupInterval   = 5 * time.Minute
)

// TokenIssuer is the slice of the session manager the user service needs:
// login issues a pair, nothing here ever rotates or revokes.
type TokenIssuer interface {
	IssueTokens(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error)
}

// MediaUploader stores a multipart image and returns its hosted URL.
type MediaUploader interface {
	UploadImage(ctx context.Context, file *multipart.FileHeader) (string, error)
}

// CacheInvalidator drops a cached identity snapshot after a profile write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *multipart.FileHeader
	CoverImage *multipart.FileHeader
}

type UserService struct {
	log      *slog.Logger
	repo     repository.UserRepository
	channels repository.ChannelRepository
	tokens   TokenIssuer
	media    MediaUploader
	cache    CacheInvalidator
	profiles *gocache.Cache
}

func NewUserService(
	log *slog.Logger,
	repo repository.UserRepository,
	channels repository.ChannelRepository,
	tokens TokenIssuer,
	media MediaUploader,
	cache CacheInvalidator,
) *UserService {
	return &UserService{
		log:      log,
		repo:     repo,
		channels: channels,
		tokens:   tokens,
		media:    media,
		cache:    cache,
		profiles: gocache.New(channelProfileCacheTTL, cacheCleanupInterval),
	}
}

// Register creates the account: avatar is mandatory, cover image optional;
// both go through the media pipeline before the row is written.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.Identity, error) {
	const op = "user_service.Register"

	log := s.log.With(
		slog.String("op", op),
		slog.String("username", input.Username),
	)

	log.Info("registering user")

	if input.Avatar == nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, storage.ErrFileRequired)
	}

	avatarURL, err := s.media.UploadImage(ctx, input.Avatar)
	if err != nil {
		log.Error("failed to upload avatar", sl.Err(err))

		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	var coverImageURL string
	if input.CoverImage != nil {
		coverImageURL, err = s.media.UploadImage(ctx, input.CoverImage)
		if err != nil {
			log.Error("failed to upload cover image", sl.Err(err))

			return models.Identity{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))

		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Username:      strings.ToLower(input.Username),
		Email:         input.Email,
		FullName:      input.FullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		Password:      passHash,
	}

	id, err := s.repo.SaveUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")

			return models.Identity{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))

		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.repo.UserByID(ctx, id)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", id.String()))

	return created.Identity(), nil
}

// Login resolves the account by username or email and issues a session on a
// bcrypt match.
func (s *UserService) Login(ctx context.Context, identifier, password string) (models.Identity, *models.TokenPair, error) {
	const op = "user_service.Login"

	log := s.log.With(
		slog.String("op", op),
		slog.String("identifier", identifier),
	)

	log.Info("attempting to login user")

	user, err := s.repo.UserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")

			return models.Identity{}, nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))

		return models.Identity{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		log.Info("invalid credentials")

		return models.Identity{}, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.tokens.IssueTokens(ctx, user.ID)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))

		return models.Identity{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully")

	return user.Identity(), pair, nil
}

// CurrentUser returns the fresh identity snapshot for an authenticated user.
func (s *UserService) CurrentUser(ctx context.Context, userID uuid.UUID) (models.Identity, error) {
	const op = "user_service.CurrentUser"

	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Identity{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Identity(), nil
}

// ChangePassword re-checks the old secret before storing the new hash. The
// active refresh token is deliberately left alone.
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "user_service.ChangePassword"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(oldPassword)); err != nil {
		log.Info("old password mismatch")

		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, newHash); err != nil {
		log.Error("failed to update password", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed")

	return nil
}

// UpdateAccount sets full name and/or email; at least one must be present.
func (s *UserService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email *string) (models.Identity, error) {
	const op = "user_service.UpdateAccount"

	if fullName == nil && email == nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, ErrNothingToUpdate)
	}

	user, err := s.repo.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		return models.Identity{}, s.mapUpdateErr(op, err)
	}

	s.cache.Invalidate(ctx, userID)

	return user.Identity(), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar *multipart.FileHeader) (models.Identity, error) {
	const op = "user_service.UpdateAvatar"

	if avatar == nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, storage.ErrFileRequired)
	}

	url, err := s.media.UploadImage(ctx, avatar)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return models.Identity{}, s.mapUpdateErr(op, err)
	}

	s.cache.Invalidate(ctx, userID)

	return user.Identity(), nil
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, coverImage *multipart.FileHeader) (models.Identity, error) {
	const op = "user_service.UpdateCoverImage"

	if coverImage == nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, storage.ErrFileRequired)
	}

	url, err := s.media.UploadImage(ctx, coverImage)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		return models.Identity{}, s.mapUpdateErr(op, err)
	}

	s.cache.Invalidate(ctx, userID)

	return user.Identity(), nil
}

// ChannelProfile serves the subscriber-count aggregation, memoized for a few
// seconds per (channel, viewer) pair.
func (s *UserService) ChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error) {
	const op = "user_service.ChannelProfile"

	key := strings.ToLower(username) + "|" + viewerID.String()
	if cached, ok := s.profiles.Get(key); ok {
		return cached.(models.ChannelProfile), nil
	}

	profile, err := s.channels.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, storage.ErrChannelNotFound) {
			return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, ErrChannelNotFound)
		}
		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	s.profiles.SetDefault(key, profile)

	return profile, nil
}

func (s *UserService) WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchHistoryItem, error) {
	const op = "user_service.WatchHistory"

	items, err := s.channels.WatchHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

func (s *UserService) RecordWatchEvent(ctx context.Context, userID, videoID uuid.UUID) error {
	const op = "user_service.RecordWatchEvent"

	if err := s.channels.AddWatchEvent(ctx, userID, videoID); err != nil {
		if errors.Is(err, storage.ErrVideoNotFound) {
			return fmt.Errorf("%s: %w", op, ErrVideoNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *UserService) mapUpdateErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	case errors.Is(err, storage.ErrUserExists):
		return fmt.Errorf("%s: %w", op, ErrUserExists)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
