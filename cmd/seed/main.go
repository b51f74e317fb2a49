package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointments/internal/appointment"
	"github.com/hackgods/clinic-appointments/internal/config"
	"github.com/hackgods/clinic-appointments/internal/db"
	"github.com/hackgods/clinic-appointments/internal/directory"
	redisclient "github.com/hackgods/clinic-appointments/internal/redis"
	"github.com/hackgods/clinic-appointments/internal/slot"
)

var specialties = []string{
	"Family Medicine",
	"Cardiology",
	"Orthopedics",
	"Pediatrics",
	"Dermatology",
	"Neurology",
	"Internal Medicine",
	"Gynecology",
	"Psychiatry",
	"Ophthalmology",
}

var visitReasons = []string{
	"Annual checkup",
	"Follow-up visit",
	"Lab results review",
	"Prescription renewal",
	"Vaccination",
	"New symptoms",
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("service", "seed"))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		log.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("seed complete")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedReference(ctx, pool, log, getInt("SEED_PATIENTS", 200), getInt("SEED_DOCTORS", 20)); err != nil {
		return err
	}

	if n := getInt("SEED_APPOINTMENTS", 0); n > 0 {
		return seedAppointments(ctx, cfg, pool, log, n, getInt("SEED_DAYS", 30))
	}
	return nil
}

// seedReference keeps the builtin clinic roster and adds fake people after it.
func seedReference(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger, patients, doctors int) error {
	builtin := directory.Builtin()

	ps := builtin.Patients()
	for i := 0; i < patients; i++ {
		ps = append(ps, appointment.Patient{
			ID:    uuid.NewString(),
			Name:  gofakeit.Name(),
			Phone: gofakeit.Phone(),
		})
	}
	if err := db.InsertPatients(ctx, pool, ps); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	log.Info("patients seeded", slog.Int("count", len(ps)))

	ds := builtin.Doctors()
	for i := 0; i < doctors; i++ {
		ds = append(ds, appointment.Doctor{
			ID:        uuid.NewString(),
			Name:      "Dr. " + gofakeit.LastName(),
			Specialty: specialties[gofakeit.Number(0, len(specialties)-1)],
		})
	}
	if err := db.InsertDoctors(ctx, pool, ds); err != nil {
		return fmt.Errorf("seed clinicians: %w", err)
	}
	log.Info("clinicians seeded", slog.Int("count", len(ds)))
	return nil
}

// seedAppointments books n random appointments through the service so the
// double-booking rule holds for the demo data too.
func seedAppointments(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, log *slog.Logger, n, days int) error {
	if days < 1 {
		days = 1
	}
	durable, closeFn, err := openSlot(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer closeFn()

	dir, err := directory.LoadPostgres(ctx, pool)
	if err != nil {
		return err
	}
	store := appointment.NewStore(durable, cfg.StoreKey, log)
	if err := store.Initialize(ctx); err != nil {
		return err
	}
	svc := appointment.NewService(store, dir, nil, log)

	patients, doctors := dir.Patients(), dir.Doctors()
	slots := appointment.TimeSlots()
	start := time.Now()

	var booked, conflicts int
	for i := 0; i < n; i++ {
		in := appointment.Input{
			PatientID: patients[gofakeit.Number(0, len(patients)-1)].ID,
			DoctorID:  doctors[gofakeit.Number(0, len(doctors)-1)].ID,
			Date:      start.AddDate(0, 0, gofakeit.Number(0, days-1)).Format(appointment.DateLayout),
			Time:      slots[gofakeit.Number(0, len(slots)-1)],
		}
		if gofakeit.Bool() {
			in.Notes = visitReasons[gofakeit.Number(0, len(visitReasons)-1)]
		}
		_, err := svc.Create(ctx, in)
		var vErr *appointment.ValidationError
		switch {
		case err == nil:
			booked++
		case errors.As(err, &vErr) && vErr.Conflict():
			conflicts++
		default:
			return fmt.Errorf("create appointment: %w", err)
		}
	}
	log.Info("appointments seeded", slog.Int("booked", booked), slog.Int("conflicts_skipped", conflicts))
	return store.Shutdown(ctx)
}

func openSlot(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (appointment.Slot, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		return db.NewSlot(pool), func() {}, nil
	case config.StoreRedis:
		rdb, err := redisclient.Connect(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		return redisclient.NewSlot(rdb, ""), func() { _ = rdb.Close() }, nil
	case config.StoreMemory:
		return nil, nil, errors.New("memory store does not outlive the seed process")
	default:
		return slot.NewFile(cfg.StoreDir), func() {}, nil
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
