package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep moves UNPAID invoices past their due date to OVERDUE.
	TaskOverdueSweep = "invoice:overdue_sweep"
	// TaskCatalogRefresh drops every catalog cache tier and warms the product list.
	TaskCatalogRefresh = "catalog:refresh"
)

// OverdueSweepPayload configures one sweep. A zero AsOf means "now".
type OverdueSweepPayload struct {
	AsOf time.Time `json:"asOf,omitempty"`
}

// NewOverdueSweepTask constructs an overdue sweep task.
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// CatalogRefreshPayload configures a catalog refresh.
type CatalogRefreshPayload struct {
	Warm bool `json:"warm"`
}

// NewCatalogRefreshTask constructs a catalog refresh task.
func NewCatalogRefreshTask(warm bool) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogRefreshPayload{Warm: warm})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogRefresh, body, asynq.Queue(QueueDefault)), nil
}
