// Package worker consumes background export jobs from the queue
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/amirphl/viewiq/app/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "viewiq",
			Name:      "export_jobs_total",
			Help:      "Export jobs processed by type and outcome",
		},
		[]string{"type", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "viewiq",
			Name:      "export_job_duration_seconds",
			Help:      "Export job run time in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type", "status"},
	)
)

// ErrDeliveriesClosed is returned when the broker closes the delivery channel
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// JobRunner executes one decoded job
type JobRunner interface {
	Run(ctx context.Context, job services.Job) error
}

// DeliverySource hands out queue deliveries
type DeliverySource interface {
	Consume(consumer string) (<-chan amqp.Delivery, error)
}

// ExportWorker runs export jobs with a fixed number of concurrent handlers
type ExportWorker struct {
	source      DeliverySource
	runner      JobRunner
	consumer    string
	concurrency int
	jobTimeout  time.Duration
}

// NewExportWorker creates a worker; concurrency below one runs a single handler
func NewExportWorker(source DeliverySource, runner JobRunner, consumer string, concurrency int, jobTimeout time.Duration) *ExportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	return &ExportWorker{
		source:      source,
		runner:      runner,
		consumer:    consumer,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
	}
}

// Run consumes until ctx is cancelled or the broker closes the channel
func (w *ExportWorker) Run(ctx context.Context) error {
	deliveries, err := w.source.Consume(w.consumer)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "worker: consuming export jobs", "consumer", w.consumer, "concurrency", w.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case d, ok := <-deliveries:
					if !ok {
						return ErrDeliveriesClosed
					}
					w.Handle(gctx, d)
				}
			}
		})
	}
	return g.Wait()
}

// Handle runs one delivery and settles it. Undecodable messages are dropped;
// failed jobs are acked since the failure is already recorded on their row.
func (w *ExportWorker) Handle(ctx context.Context, d amqp.Delivery) {
	var job services.Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		slog.ErrorContext(ctx, "worker: dropping malformed job", "error", err)
		jobsTotal.WithLabelValues("unknown", "malformed").Inc()
		if err := d.Nack(false, false); err != nil {
			slog.ErrorContext(ctx, "worker: failed to nack", "error", err)
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	status := "success"
	if err := w.runner.Run(jobCtx, job); err != nil {
		status = "failed"
		slog.ErrorContext(ctx, "worker: export job failed", "type", job.Type, "id", job.ID, "error", err)
	} else {
		slog.InfoContext(ctx, "worker: export job done", "type", job.Type, "id", job.ID, "duration", time.Since(start))
	}
	jobsTotal.WithLabelValues(string(job.Type), status).Inc()
	jobDuration.WithLabelValues(string(job.Type), status).Observe(time.Since(start).Seconds())

	if err := d.Ack(false); err != nil {
		slog.ErrorContext(ctx, "worker: failed to ack", "type", job.Type, "id", job.ID, "error", err)
	}
}
