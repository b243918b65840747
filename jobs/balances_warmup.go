package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/yfarmers/feedledger/internal/jobs"
	"github.com/yfarmers/feedledger/internal/ledger"
)

// BalancesWarmer precomputes balance reports for a date.
type BalancesWarmer interface {
	Warm(ctx context.Context, date ledger.Date) error
}

// BalancesWarmupJob fills the balances cache so the first reader of the day
// does not pay for a full ledger scan.
type BalancesWarmupJob struct {
	Balances BalancesWarmer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration
	clock    func() time.Time
}

// NewBalancesWarmupJob wires dependencies for the warmup handler.
func NewBalancesWarmupJob(balances BalancesWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalancesWarmupJob {
	return &BalancesWarmupJob{
		Balances: balances,
		Logger:   logger,
		Metrics:  metrics,
		Timeout:  time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes balances warmup tasks.
func (j *BalancesWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Balances == nil {
		return errors.New("balances warmup: handler not configured")
	}
	var payload BalancesWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	date := ledger.DateOf(j.now())
	if payload.Date != "" {
		parsed, err := ledger.ParseDate(payload.Date)
		if err != nil {
			return errors.Join(err, asynq.SkipRetry)
		}
		date = parsed
	}

	run := j.Metrics.Start(TaskBalancesWarmup)
	var resultErr error
	defer func() {
		resultErr = run.Finish(resultErr)
	}()

	logger := j.logger().With(slog.String("date", date.Key()))
	warmCtx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()
	start := time.Now()
	if err := j.Balances.Warm(warmCtx, date); err != nil {
		resultErr = err
		logger.Error("warm balances", slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed balances warmup", slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *BalancesWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBalancesWarmup))
	}
	return slog.Default().With(slog.String("job", TaskBalancesWarmup))
}

func (j *BalancesWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
