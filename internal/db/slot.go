package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

// Slot keeps durable values as rows of kv_slots.
type Slot struct {
	pool *pgxpool.Pool

	once      sync.Once
	schemaErr error
}

func NewSlot(pool *pgxpool.Pool) *Slot {
	return &Slot{pool: pool}
}

func (s *Slot) ensure(ctx context.Context) error {
	s.once.Do(func() { s.schemaErr = EnsureSchema(ctx, s.pool) })
	return s.schemaErr
}

func (s *Slot) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_slots WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("select slot %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *Slot) Put(ctx context.Context, key string, value []byte) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_slots (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", key, err)
	}
	return nil
}

func (s *Slot) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
