package repository

import (
	"github.com/jackc/pgx/v4/pgxpool"
)

type Repository struct {
	User    *UserRepo
	Session *SessionRepo
	Channel *ChannelRepo
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		User:    NewUserRepository(db),
		Session: NewSessionRepository(db),
		Channel: NewChannelRepository(db),
	}
}
