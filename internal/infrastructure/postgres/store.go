// Package postgres provides PostgreSQL infrastructure: a write-through
// status override store and the transactional outbox used for event
// publishing.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
	"github.com/praxisdesk/go-praxis/internal/status"
)

// StatusStore is a durable status.Store. Reads are served from an
// in-memory layer loaded at startup; every Set writes through to the
// status_overrides table before becoming visible, so the store stays
// bounded by the database rather than by process memory.
type StatusStore struct {
	pool   *pgxpool.Pool
	mem    *status.MemoryStore
	logger *zap.Logger
}

// NewStatusStore creates a store over the given pool.
func NewStatusStore(pool *pgxpool.Pool, logger *zap.Logger) *StatusStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusStore{pool: pool, mem: status.NewMemoryStore(), logger: logger}
}

// Load hydrates the serving layer from persisted overrides.
func (s *StatusStore) Load(ctx context.Context) error {
	rows, err := s.pool.Query(ctx,
		`SELECT dimension, vo_number, value FROM status_overrides`)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var dim, voNumber, value string
		if err := rows.Scan(&dim, &voNumber, &value); err != nil {
			return fmt.Errorf("scan override: %w", err)
		}
		if err := s.mem.Set(vo.Dimension(dim), voNumber, value); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.logger.Info("status overrides loaded", zap.Int("count", count))
	return nil
}

// Get implements status.Store.
func (s *StatusStore) Get(dim vo.Dimension, voNumber, fallback string) string {
	return s.mem.Get(dim, voNumber, fallback)
}

// Set implements status.Store. The database write happens first; the
// in-memory layer only reflects values that are durable.
func (s *StatusStore) Set(dim vo.Dimension, voNumber, value string) error {
	query := `
		INSERT INTO status_overrides (dimension, vo_number, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (dimension, vo_number) DO UPDATE
		SET value = $3, updated_at = NOW()
	`
	if _, err := s.pool.Exec(context.Background(), query, string(dim), voNumber, value); err != nil {
		return fmt.Errorf("persist override %s/%s: %w", dim, voNumber, err)
	}
	return s.mem.Set(dim, voNumber, value)
}
