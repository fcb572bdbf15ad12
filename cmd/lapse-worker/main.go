package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/dean-appointment-requests/internal/appointment"
	"github.com/hackgods/dean-appointment-requests/internal/config"
	"github.com/hackgods/dean-appointment-requests/internal/db"
	"github.com/hackgods/dean-appointment-requests/internal/lock"
	"github.com/hackgods/dean-appointment-requests/internal/logger"
	redisclient "github.com/hackgods/dean-appointment-requests/internal/redis"
	"github.com/hackgods/dean-appointment-requests/internal/worker"
)

// The lapse worker only makes sense next to a shared store; with the memory
// store the api-server runs the same loop itself (LAPSE_INTERVAL).
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

	if cfg.StoreDriver != config.StorePostgres {
		lg.Fatal("lapse-worker requires STORE_DRIVER=postgres")
	}
	if cfg.LockDriver != config.LockRedis {
		lg.Fatal("lapse-worker requires LOCK_DRIVER=redis to coordinate with api-server approvals")
	}

	interval := cfg.LapseInterval
	if interval <= 0 {
		interval = time.Hour
	}
	lg.Info("lapse-worker starting up", zap.String("env", cfg.Env), zap.Duration("interval", interval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

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

	repo := appointment.NewPgRepository(pgPool)
	locker := lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait)
	svc := appointment.NewService(repo, locker, appointment.WithLogger(lg.Named("appointment")))

	worker.RunLapseLoop(rootCtx, svc, interval, time.Now, lg)
	lg.Info("shutdown signal received, lapse-worker stopped")
}
