package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/dean-appointment-requests/internal/api"
	"github.com/hackgods/dean-appointment-requests/internal/appointment"
	"github.com/hackgods/dean-appointment-requests/internal/config"
	"github.com/hackgods/dean-appointment-requests/internal/db"
	"github.com/hackgods/dean-appointment-requests/internal/lock"
	"github.com/hackgods/dean-appointment-requests/internal/logger"
	"github.com/hackgods/dean-appointment-requests/internal/metrics"
	redisclient "github.com/hackgods/dean-appointment-requests/internal/redis"
	"github.com/hackgods/dean-appointment-requests/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
		zap.String("lock", cfg.LockDriver),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []api.DependencyCheck

	var repo appointment.Repository
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		cancelPg()
		if err != nil {
			lg.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		lg.Info("connected to Postgres")

		pgRepo := appointment.NewPgRepository(pgPool)
		checks = append(checks, api.DependencyCheck{Name: "postgres", Critical: true, Ping: pgRepo.Ping})
		repo = pgRepo
	default:
		repo = appointment.NewMemoryRepository()
	}

	var locker lock.Locker
	switch cfg.LockDriver {
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			lg.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("error closing redis", zap.Error(err))
			}
		}()
		lg.Info("connected to Redis")

		checks = append(checks, api.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		locker = lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait)
	default:
		locker = lock.NewLocal()
	}

	m := metrics.New()
	svc := appointment.NewService(repo, locker,
		appointment.WithLogger(lg.Named("appointment")),
		appointment.WithRecorder(m),
	)

	admins, err := appointment.NewAdminDirectory(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		lg.Fatal("admin seed error", zap.Error(err))
	}

	handler := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Admins:       admins,
		Logger:       lg.Named("http"),
		Observer:     m,
		Metrics:      m.Handler(),
		LoginLimiter: api.NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst),
		Checks:       checks,
		Env:          cfg.Env,
		Version:      cfg.Version,
	})

	if cfg.LapseInterval > 0 {
		go worker.RunLapseLoop(rootCtx, svc, cfg.LapseInterval, time.Now, lg.Named("lapse"))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server error", zap.Error(err))
		}
	}()
	lg.Info("listening", zap.String("addr", srv.Addr))

	<-rootCtx.Done()

	lg.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
