package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

// LoadPatients reads the patients table ordered by name.
func LoadPatients(ctx context.Context, pool *pgxpool.Pool) ([]appointment.Patient, error) {
	rows, err := pool.Query(ctx, `SELECT id, name, phone FROM patients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	patients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Patient, error) {
		var p appointment.Patient
		err := row.Scan(&p.ID, &p.Name, &p.Phone)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan patients: %w", err)
	}
	return patients, nil
}

// LoadDoctors reads the clinicians table ordered by name.
func LoadDoctors(ctx context.Context, pool *pgxpool.Pool) ([]appointment.Doctor, error) {
	rows, err := pool.Query(ctx, `SELECT id, name, specialty FROM clinicians ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query clinicians: %w", err)
	}
	doctors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Doctor, error) {
		var d appointment.Doctor
		err := row.Scan(&d.ID, &d.Name, &d.Specialty)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan clinicians: %w", err)
	}
	return doctors, nil
}

// InsertPatients upserts patients in one transaction.
func InsertPatients(ctx context.Context, pool *pgxpool.Pool, patients []appointment.Patient) error {
	return inTx(ctx, pool, func(tx pgx.Tx) error {
		for _, p := range patients {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone
			`, p.ID, p.Name, p.Phone)
			if err != nil {
				return fmt.Errorf("insert patient %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// InsertDoctors upserts clinicians in one transaction.
func InsertDoctors(ctx context.Context, pool *pgxpool.Pool, doctors []appointment.Doctor) error {
	return inTx(ctx, pool, func(tx pgx.Tx) error {
		for _, d := range doctors {
			_, err := tx.Exec(ctx, `
				INSERT INTO clinicians (id, name, specialty)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, specialty = EXCLUDED.specialty
			`, d.ID, d.Name, d.Specialty)
			if err != nil {
				return fmt.Errorf("insert clinician %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
