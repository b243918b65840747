package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/yfarmers/feedledger/internal/jobs"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/shared"
)

const defaultRepairDays = 2

// MirrorChecker checks and repairs transfer mirrors for one date.
type MirrorChecker interface {
	CheckTransferMirrors(ctx context.Context, date ledger.Date, apply bool) (ledger.MirrorReport, error)
}

// Locker obtains a distributed lock.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// MirrorRepairJob recreates transfersIn entries whose write was lost after
// the matching transfersOut was committed.
type MirrorRepairJob struct {
	Ledger  MirrorChecker
	Locker  Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
	clock   func() time.Time
}

// NewMirrorRepairJob wires dependencies for the repair handler. locker may
// be nil when a single worker runs.
func NewMirrorRepairJob(checker MirrorChecker, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *MirrorRepairJob {
	return &MirrorRepairJob{
		Ledger:  checker,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		LockTTL: 2 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes mirror repair tasks.
func (j *MirrorRepairJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("mirror repair: handler not configured")
	}
	var payload MirrorRepairPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run sweeps the configured days, oldest first.
func (j *MirrorRepairJob) Run(ctx context.Context, payload MirrorRepairPayload) ([]ledger.MirrorReport, error) {
	end := ledger.DateOf(j.now())
	if payload.Date != "" {
		parsed, err := ledger.ParseDate(payload.Date)
		if err != nil {
			return nil, errors.Join(err, asynq.SkipRetry)
		}
		end = parsed
	}
	days := payload.Days
	if days <= 0 {
		days = defaultRepairDays
	}

	run := j.Metrics.Start(TaskMirrorRepair)
	var resultErr error
	defer func() {
		resultErr = run.Finish(resultErr)
	}()

	logger := j.logger().With(slog.String("end", end.Key()), slog.Int("days", days), slog.Bool("dry_run", payload.DryRun))

	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.LedgerLockKey("mirror_repair"), j.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("mirror repair already running elsewhere")
			run.Skip()
			return nil, nil
		}
		if err != nil {
			resultErr = err
			logger.Error("obtain repair lock", slog.Any("error", err))
			return nil, resultErr
		}
		defer func() {
			_ = lock.Release(context.WithoutCancel(ctx))
		}()
	}

	date := end
	for i := 1; i < days; i++ {
		date = date.Prev()
	}
	reports := make([]ledger.MirrorReport, 0, days)
	for i := 0; i < days; i++ {
		report, err := j.Ledger.CheckTransferMirrors(ctx, date, !payload.DryRun)
		if err != nil {
			resultErr = err
			logger.Error("check transfer mirrors", slog.String("date", date.Key()), slog.Any("error", err))
			return reports, resultErr
		}
		j.Metrics.MirrorSweep(len(report.Missing), len(report.Orphans), report.Repaired)
		if !report.Consistent() {
			logger.Warn("transfer mirrors inconsistent",
				slog.String("date", date.Key()),
				slog.Int("missing", len(report.Missing)),
				slog.Int("orphans", len(report.Orphans)),
				slog.Int("repaired", report.Repaired))
		}
		reports = append(reports, report)
		date = date.Next()
	}
	logger.Info("completed mirror repair", slog.Int("checked_days", len(reports)))
	return reports, resultErr
}

func (j *MirrorRepairJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMirrorRepair))
	}
	return slog.Default().With(slog.String("job", TaskMirrorRepair))
}

func (j *MirrorRepairJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
