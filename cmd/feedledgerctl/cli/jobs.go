package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/yfarmers/feedledger/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis options.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerOptions carries the optional payload fields of a manual trigger.
type TriggerOptions struct {
	Date   string
	Days   int
	DryRun bool
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskMirrorRepair:
		task, err = jobs.NewMirrorRepairTask(jobs.MirrorRepairPayload{Date: opts.Date, Days: opts.Days, DryRun: opts.DryRun})
	case jobs.TaskBalancesWarmup:
		task, err = jobs.NewBalancesWarmupTask(jobs.BalancesWarmupPayload{Date: opts.Date})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

// InspectQueues reports the counters of every worker queue. Queues nothing
// was ever enqueued on are reported empty.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	existing, err := c.inspector.Queues()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[name] = true
	}
	stats := make([]QueueStats, 0, len(jobs.QueueNames()))
	for _, name := range jobs.QueueNames() {
		s := QueueStats{Queue: name}
		if known[name] {
			info, err := c.inspector.GetQueueInfo(name)
			if err != nil {
				return nil, fmt.Errorf("jobs cli: queue %s: %w", name, err)
			}
			s.Pending = info.Pending
			s.Active = info.Active
			s.Scheduled = info.Scheduled
			s.Retry = info.Retry
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// ListScheduled returns up to size scheduled tasks per worker queue.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	existing, err := c.inspector.Queues()
	if err != nil {
		return nil, err
	}
	var out []*asynq.TaskInfo
	for _, name := range existing {
		if _, ok := jobs.Queues()[name]; !ok {
			continue
		}
		tasks, err := c.inspector.ListScheduledTasks(name, asynq.PageSize(size), asynq.Page(1))
		if err != nil {
			return nil, fmt.Errorf("jobs cli: queue %s: %w", name, err)
		}
		out = append(out, tasks...)
	}
	return out, nil
}
