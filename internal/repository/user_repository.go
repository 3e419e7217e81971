package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidhub/internal/domain/models"
	"vidhub/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolationCode = "23505"

var userColumns = []string{
	"id", "username", "email", "full_name", "avatar_url",
	"cover_image_url", "password", "refresh_token", "created_at", "updated_at",
}

type UserRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewUserRepository(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *UserRepo) SaveUser(ctx context.Context, user models.User) (uuid.UUID, error) {
	const op = "repository.user_repository.SaveUser"

	query, args, err := r.sb.Insert("users").
		Columns(
			"username",
			"email",
			"full_name",
			"avatar_url",
			"cover_image_url",
			"password",
		).
		Values(
			user.Username,
			user.Email,
			user.FullName,
			user.AvatarURL,
			user.CoverImageURL,
			user.Password,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// UserByIdentifier resolves a user by username or email, whichever matches.
func (r *UserRepo) UserByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	const op = "repository.user_repository.UserByIdentifier"

	return r.userBy(ctx, op, sq.Or{
		sq.Eq{"username": identifier},
		sq.Eq{"email": identifier},
	})
}

func (r *UserRepo) UserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "repository.user_repository.UserByID"

	return r.userBy(ctx, op, sq.Eq{"id": userID})
}

func (r *UserRepo) userBy(ctx context.Context, op string, pred interface{}) (models.User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").Where(pred).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	var user models.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.Password,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateAccount sets the provided fields only and returns the post-update
// record.
func (r *UserRepo) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email *string) (models.User, error) {
	const op = "repository.user_repository.UpdateAccount"

	builder := r.sb.Update("users").Set("updated_at", time.Now().UTC())
	if fullName != nil {
		builder = builder.Set("full_name", *fullName)
	}
	if email != nil {
		builder = builder.Set("email", *email)
	}

	return r.updateReturning(ctx, op, builder.Where(sq.Eq{"id": userID}))
}

func (r *UserRepo) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (models.User, error) {
	const op = "repository.user_repository.UpdateAvatar"

	builder := r.sb.Update("users").
		Set("avatar_url", avatarURL).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": userID})

	return r.updateReturning(ctx, op, builder)
}

func (r *UserRepo) UpdateCoverImage(ctx context.Context, userID uuid.UUID, coverImageURL string) (models.User, error) {
	const op = "repository.user_repository.UpdateCoverImage"

	builder := r.sb.Update("users").
		Set("cover_image_url", coverImageURL).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": userID})

	return r.updateReturning(ctx, op, builder)
}

func (r *UserRepo) updateReturning(ctx context.Context, op string, builder sq.UpdateBuilder) (models.User, error) {
	query, args, err := builder.Suffix("RETURNING " + joinColumns(userColumns)).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	var user models.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.Password,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash []byte) error {
	const op = "repository.user_repository.UpdatePassword"

	query, args, err := r.sb.Update("users").
		Set("password", passwordHash).
		Set("updated_at", time.Now().UTC()).
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

func joinColumns(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}
