package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/yfarmers/feedledger/internal/app"
	"github.com/yfarmers/feedledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if cfg.StoreBackend == app.BackendMemory {
		logger.Error("worker needs a shared store, the memory backend is private to one process", slog.String("store", cfg.StoreBackend))
		os.Exit(1)
	}

	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close()
	if rt.Redis == nil {
		logger.Error("worker requires redis", slog.String("addr", cfg.RedisAddr))
		os.Exit(1)
	}

	repairJob := jobs.NewMirrorRepairJob(rt.Ledger, redislock.New(rt.Redis), logger, rt.JobMetrics)
	warmupJob := jobs.NewBalancesWarmupJob(rt.Balances, logger, rt.JobMetrics)

	repairTask, err := jobs.NewMirrorRepairTask(jobs.MirrorRepairPayload{Days: cfg.MirrorRepairDays})
	if err != nil {
		logger.Error("build mirror repair task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewBalancesWarmupTask(jobs.BalancesWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMirrorRepair, Handler: repairJob.Handle},
			{Type: jobs.TaskBalancesWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.MirrorRepairCron, Task: repairTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.BalanceWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
