package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverdueMarker flips overdue invoices; *invoices.Service satisfies it.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, filter invoices.ListFilter) (int, error)
}

// OverdueSweepJob owns the UNPAID to OVERDUE transition. Views never derive it from dates.
type OverdueSweepJob struct {
	Invoices OverdueMarker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueSweepJob wires dependencies for the sweep handler.
func NewOverdueSweepJob(marker OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Invoices: marker,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes overdue sweep tasks.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}

	tracker := j.metrics().Track(TaskOverdueSweep)
	logger := j.logger().With(slog.Time("as_of", asOf))
	logger.Info("starting overdue sweep")

	changed, err := j.Invoices.MarkOverdue(ctx, invoices.ListFilter{DueBefore: asOf})
	j.metrics().AddOverdue(changed)
	if err != nil {
		logger.Error("overdue sweep", slog.Int("marked", changed), slog.Any("error", err))
		return tracker.End(err)
	}

	logger.Info("completed overdue sweep", slog.Int("marked", changed))
	return tracker.End(nil)
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueSweep))
	}
	return slog.Default().With(slog.String("job", TaskOverdueSweep))
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
