package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Storage keeps history blobs as JSONB rows in quiz_history.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_history WHERE key=$1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load history: %w", err)
	}
	return raw, true, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_history (key, data, updated_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (key) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_history WHERE key=$1`, key); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// Keys matches by literal prefix; LIKE would treat the underscores in the prefix as wildcards.
func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM quiz_history WHERE left(key, length($1::text)) = $1::text ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list history keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan history key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
