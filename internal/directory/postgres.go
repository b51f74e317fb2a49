package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointments/internal/db"
)

// LoadPostgres snapshots the patients and clinicians tables.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool) (*Roster, error) {
	if err := db.EnsureSchema(ctx, pool); err != nil {
		return nil, err
	}
	patients, err := db.LoadPatients(ctx, pool)
	if err != nil {
		return nil, err
	}
	doctors, err := db.LoadDoctors(ctx, pool)
	if err != nil {
		return nil, err
	}
	return NewRoster(patients, doctors), nil
}
