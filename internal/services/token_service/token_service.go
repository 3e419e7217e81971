package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vidhub/internal/domain/models"
	jwtlib "vidhub/internal/lib/jwt"
	"vidhub/internal/lib/logger/sl"
	"vidhub/internal/repository"
	"vidhub/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenReused  = errors.New("refresh token is expired or used")
)

// TokenService drives the session through its states: a login issues a
// pair, every refresh rotates both halves, logout revokes. The persisted
// refresh token on the user row is the single source of truth for whether a
// presented refresh token is still live.
type TokenService struct {
	log      *slog.Logger
	tokens   *jwtlib.Manager
	sessions repository.SessionRepository
	users    repository.UserRepository
}

func NewTokenService(log *slog.Logger, tokens *jwtlib.Manager, sessions repository.SessionRepository, users repository.UserRepository) *TokenService {
	return &TokenService{
		log:      log,
		tokens:   tokens,
		sessions: sessions,
		users:    users,
	}
}

// IssueTokens mints an access+refresh pair and persists the refresh half.
// If the write fails no pair is handed out: a refresh token that is not
// durably stored could never be exchanged later.
func (s *TokenService) IssueTokens(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error) {
	const op = "token_service.IssueTokens"

	pair, err := s.mintPair(userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.SaveRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		s.log.Error("failed to persist refresh token", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Refresh exchanges a presented refresh token for a freshly rotated pair.
// The presented value must verify cryptographically, belong to an existing
// user and byte-equal the persisted token; the swap itself is a
// compare-and-swap so a raced stale token loses even after passing the read
// check.
func (s *TokenService) Refresh(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "token_service.Refresh"

	log := s.log.With(slog.String("op", op))

	if presented == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, err := s.tokens.Verify(presented, jwtlib.TokenKindRefresh)
	if err != nil {
		log.Warn("refresh token failed verification", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	userID, err := claims.Subject()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := s.sessions.RefreshToken(ctx, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenReused)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stored != presented {
		log.Warn("presented refresh token does not match stored one",
			slog.String("user_id", user.ID.String()),
		)

		return nil, fmt.Errorf("%s: %w", op, ErrTokenReused)
	}

	pair, err := s.mintPair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrSessionMismatch) {
			// lost a rotation race: someone already exchanged this token
			return nil, fmt.Errorf("%s: %w", op, ErrTokenReused)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("session rotated", slog.String("user_id", user.ID.String()))

	return pair, nil
}

// Logout clears the persisted refresh token; every outstanding refresh
// token stops rotating from this point on.
func (s *TokenService) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "token_service.Logout"

	if err := s.sessions.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *TokenService) mintPair(userID uuid.UUID) (*models.TokenPair, error) {
	accessToken, err := s.tokens.NewAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.NewRefreshToken(userID)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
