package repository

import (
	"context"
	"errors"
	"fmt"

	"vidhub/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SessionRepo owns the refresh_token column on users. Every write here is a
// single-column UPDATE; the rest of the record is never read or validated.
type SessionRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveRefreshToken overwrites whatever token was stored before, which
// invalidates it immediately.
func (r *SessionRepo) SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	const op = "repository.session_repository.SaveRefreshToken"

	query, args, err := r.sb.Update("users").
		Set("refresh_token", token).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

// RotateRefreshToken swaps current for next atomically. When two refresh
// calls race on the same stale token only the first one matches the WHERE
// clause; the loser gets ErrSessionMismatch.
func (r *SessionRepo) RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string) error {
	const op = "repository.session_repository.RotateRefreshToken"

	query, args, err := r.sb.Update("users").
		Set("refresh_token", next).
		Where(sq.Eq{"id": userID, "refresh_token": current}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrSessionMismatch)
	}

	return nil
}

func (r *SessionRepo) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	const op = "repository.session_repository.ClearRefreshToken"

	query, args, err := r.sb.Update("users").
		Set("refresh_token", nil).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (r *SessionRepo) RefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	const op = "repository.session_repository.RefreshToken"

	query, args, err := r.sb.Select("refresh_token").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	var token *string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if token == nil {
		return "", fmt.Errorf("%s: %w", op, storage.ErrSessionNotFound)
	}

	return *token, nil
}
