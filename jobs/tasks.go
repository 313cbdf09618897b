package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockIntegrity recomputes ledger sums and compares them with the
	// stock level projection.
	TaskStockIntegrity = "stock:integrity"
)

// NewStockIntegrityTask constructs the integrity audit task. The task carries
// no payload; the audit always covers the full ledger.
func NewStockIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskStockIntegrity, nil)
}
