package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-appointments/internal/api"
	"github.com/hackgods/clinic-appointments/internal/appointment"
	"github.com/hackgods/clinic-appointments/internal/config"
	"github.com/hackgods/clinic-appointments/internal/db"
	"github.com/hackgods/clinic-appointments/internal/directory"
	redisclient "github.com/hackgods/clinic-appointments/internal/redis"
	"github.com/hackgods/clinic-appointments/internal/slot"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With(slog.String("service", "clinic-appointments"))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api-server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

type durableSlot interface {
	appointment.Slot
	api.Pinger
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("api-server starting",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.HTTPPort),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("directory_source", cfg.DirectorySource),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pgPool *pgxpool.Pool
	if cfg.PostgresDSN != "" && (cfg.StoreBackend == config.StorePostgres || cfg.DirectorySource == config.DirectoryPostgres) {
		pgCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		pool, err := db.Connect(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return err
		}
		defer pool.Close()
		pgPool = pool
		log.Info("connected to postgres")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		client, err := redisclient.Connect(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("error closing redis", slog.Any("error", err))
			}
		}()
		rdb = client
		log.Info("connected to redis", slog.String("addr", cfg.RedisAddr))
	}

	var durable durableSlot
	switch cfg.StoreBackend {
	case config.StoreMemory:
		durable = slot.NewMemory()
	case config.StoreRedis:
		durable = redisclient.NewSlot(rdb, "")
	case config.StorePostgres:
		durable = db.NewSlot(pgPool)
	default:
		durable = slot.NewFile(cfg.StoreDir)
	}
	ready := map[string]api.Pinger{"store": durable}
	if rdb != nil && cfg.StoreBackend != config.StoreRedis {
		ready["redis"] = redisclient.NewSlot(rdb, "")
	}

	dir, err := loadDirectory(rootCtx, cfg, pgPool)
	if err != nil {
		return err
	}
	log.Info("directory loaded",
		slog.Int("patients", len(dir.Patients())),
		slog.Int("doctors", len(dir.Doctors())),
	)

	store := appointment.NewStore(durable, cfg.StoreKey, log)
	if err := store.Initialize(rootCtx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	var locker appointment.Locker
	if rdb != nil {
		locker = redisclient.NewSlotLocker(rdb, cfg.LockTTL)
	}
	svc := appointment.NewService(store, dir, locker, log)

	router := api.NewRouter(api.RouterConfig{
		Service:     svc,
		Ready:       ready,
		Credentials: api.Credentials{Email: cfg.StaffEmail, Password: cfg.StaffPassword},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutting down api-server")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", slog.Any("error", err))
	}
	if err := store.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown store: %w", err)
	}
	log.Info("api-server stopped")
	return nil
}

func loadDirectory(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (*directory.Roster, error) {
	switch cfg.DirectorySource {
	case config.DirectoryYAML:
		return directory.LoadYAML(cfg.DirectoryFile)
	case config.DirectoryPostgres:
		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return directory.LoadPostgres(loadCtx, pool)
	default:
		return directory.Builtin(), nil
	}
}
