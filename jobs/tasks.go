package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueLedger carries jobs that write to the ledger.
	QueueLedger = "ledger"
	// QueueReports carries jobs that only read the ledger.
	QueueReports = "reports"
	// TaskMirrorRepair sweeps recent days for transfers missing their mirror.
	TaskMirrorRepair = "ledger:mirror_repair"
	// TaskBalancesWarmup precomputes the balance reports for today.
	TaskBalancesWarmup = "balances:warmup"
)

// Queues returns the worker queues with their processing weights. Ledger
// repairs are served ahead of report warmups.
func Queues() map[string]int {
	return map[string]int{QueueLedger: 6, QueueReports: 2}
}

// QueueNames lists the queues in priority order.
func QueueNames() []string {
	return []string{QueueLedger, QueueReports}
}

// MirrorRepairPayload configures a mirror repair sweep. Date is DD-MM-YYYY;
// empty means today. Days is how many days back from Date are checked.
type MirrorRepairPayload struct {
	Date   string `json:"date,omitempty"`
	Days   int    `json:"days,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// BalancesWarmupPayload selects the date to warm; empty means today.
type BalancesWarmupPayload struct {
	Date string `json:"date,omitempty"`
}

// NewMirrorRepairTask constructs a mirror repair task.
func NewMirrorRepairTask(payload MirrorRepairPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMirrorRepair, data, asynq.Queue(QueueLedger), asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}

// NewBalancesWarmupTask constructs a balances warmup task.
func NewBalancesWarmupTask(payload BalancesWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalancesWarmup, data, asynq.Queue(QueueReports), asynq.MaxRetry(1), asynq.Timeout(2*time.Minute)), nil
}
