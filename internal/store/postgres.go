package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps the snapshot in the quiz_sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresStore creates a PostgreSQL-backed store. The quiz_sessions
// table must exist (see database.EnsureSchema).
func NewPostgresStore(pool *pgxpool.Pool, key string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool, key: key}, nil
}

func (s *PostgresStore) Key() string {
	return s.key
}

func (s *PostgresStore) Save(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (key, snapshot, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (key) DO UPDATE
		 SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`,
		s.key,
		string(data),
	)
	if err != nil {
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var snapshot string
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot::text FROM quiz_sessions WHERE key = $1`,
		s.key,
	).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &PersistenceError{Op: "load", Key: s.key, Err: err}
	}
	return []byte(snapshot), true, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE key = $1`, s.key); err != nil {
		return &PersistenceError{Op: "clear", Key: s.key, Err: err}
	}
	return nil
}
