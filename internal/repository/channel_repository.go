package repository

import (
	"context"
	"errors"
	"fmt"

	"vidhub/internal/domain/models"
	"vidhub/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const foreignKeyViolationCode = "23503"

type ChannelRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewChannelRepository(db *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const channelProfileQuery = `
SELECT u.id,
       u.username,
       u.full_name,
       u.email,
       u.avatar_url,
       u.cover_image_url,
       (SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscribers_count,
       (SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_to_count,
       EXISTS (
           SELECT 1 FROM subscriptions s
           WHERE s.channel_id = u.id AND s.subscriber_id = $2
       ) AS is_subscribed
FROM users u
WHERE lower(u.username) = lower($1)
`

func (r *ChannelRepo) ChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error) {
	const op = "repository.channel_repository.ChannelProfile"

	var profile models.ChannelProfile
	err := r.db.QueryRow(ctx, channelProfileQuery, username, viewerID).Scan(
		&profile.ID,
		&profile.Username,
		&profile.FullName,
		&profile.Email,
		&profile.AvatarURL,
		&profile.CoverImageURL,
		&profile.SubscriberCount,
		&profile.SubscribedToCount,
		&profile.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, storage.ErrChannelNotFound)
		}
		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	return profile, nil
}

const watchHistoryQuery = `
SELECT v.id,
       v.owner_id,
       v.title,
       v.description,
       v.video_url,
       v.thumbnail_url,
       v.duration,
       v.views,
       v.created_at,
       o.id,
       o.username,
       o.full_name,
       o.avatar_url,
       h.watched_at
FROM watch_history h
JOIN videos v ON v.id = h.video_id
JOIN users o ON o.id = v.owner_id
WHERE h.user_id = $1
ORDER BY h.watched_at DESC
`

func (r *ChannelRepo) WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchHistoryItem, error) {
	const op = "repository.channel_repository.WatchHistory"

	rows, err := r.db.Query(ctx, watchHistoryQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]models.WatchHistoryItem, 0)
	for rows.Next() {
		var item models.WatchHistoryItem
		err := rows.Scan(
			&item.Video.ID,
			&item.Video.OwnerID,
			&item.Video.Title,
			&item.Video.Description,
			&item.Video.VideoURL,
			&item.Video.ThumbnailURL,
			&item.Video.Duration,
			&item.Video.Views,
			&item.Video.CreatedAt,
			&item.Owner.ID,
			&item.Owner.Username,
			&item.Owner.FullName,
			&item.Owner.AvatarURL,
			&item.WatchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// AddWatchEvent records (or re-dates) a watch of videoID by userID.
func (r *ChannelRepo) AddWatchEvent(ctx context.Context, userID, videoID uuid.UUID) error {
	const op = "repository.channel_repository.AddWatchEvent"

	query, args, err := r.sb.Insert("watch_history").
		Columns("user_id", "video_id").
		Values(userID, videoID).
		Suffix("ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: can't build sql: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode {
			return fmt.Errorf("%s: %w", op, storage.ErrVideoNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
