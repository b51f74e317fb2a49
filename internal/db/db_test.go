package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	pool, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestSlot_Integration(t *testing.T) {
	pool := testPool(t)
	s := NewSlot(pool)
	ctx := context.Background()
	key := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM kv_slots WHERE key = $1`, key)
	})

	if _, err := s.Get(ctx, key); !errors.Is(err, appointment.ErrSlotEmpty) {
		t.Fatalf("Get error = %v, want %v", err, appointment.ErrSlotEmpty)
	}
	for _, v := range []string{`[]`, `[{"id":"a"}]`} {
		if err := s.Put(ctx, key, []byte(v)); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	got, err := s.Get(ctx, key)
	if err != nil || string(got) != `[{"id":"a"}]` {
		t.Fatalf("Get = %s, %v", got, err)
	}
}

func TestReferenceTables_Integration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}

	pid, did := "test-"+uuid.NewString(), "test-"+uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM patients WHERE id = $1`, pid)
		_, _ = pool.Exec(context.Background(), `DELETE FROM clinicians WHERE id = $1`, did)
	})

	if err := InsertPatients(ctx, pool, []appointment.Patient{{ID: pid, Name: "Ada", Phone: "555"}}); err != nil {
		t.Fatalf("InsertPatients error: %v", err)
	}
	if err := InsertDoctors(ctx, pool, []appointment.Doctor{{ID: did, Name: "Dr. Who", Specialty: "General"}}); err != nil {
		t.Fatalf("InsertDoctors error: %v", err)
	}

	patients, err := LoadPatients(ctx, pool)
	if err != nil {
		t.Fatalf("LoadPatients error: %v", err)
	}
	if !containsPatient(patients, pid) {
		t.Fatalf("patient %s not loaded", pid)
	}
	doctors, err := LoadDoctors(ctx, pool)
	if err != nil {
		t.Fatalf("LoadDoctors error: %v", err)
	}
	found := false
	for _, d := range doctors {
		found = found || d.ID == did
	}
	if !found {
		t.Fatalf("doctor %s not loaded", did)
	}
}

func containsPatient(ps []appointment.Patient, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}
