package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrSessionNotFound = errors.New("session log not found")
	ErrGroupNotFound   = errors.New("group not found")
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
