package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the safety subsystem
type Registry struct {
	meter metric.Meter

	// Emergency dispatch metrics
	DispatchLatency     metric.Float64Histogram
	SLAViolationCounter metric.Int64Counter
	DispatchCounter     metric.Int64Counter
	FallbackCounter     metric.Int64Counter

	// Crisis domain metrics
	CrisisDetectedCounter metric.Int64Counter
	EscalationCounter     metric.Int64Counter

	// Backup/restore metrics
	BackupCounter         metric.Int64Counter
	RestoreCounter        metric.Int64Counter
	RestoreFailureCounter metric.Int64Counter
	RestoreDuration       metric.Float64Histogram

	// Migration metrics
	MigrationDuration       metric.Float64Histogram
	MigrationCounter        metric.Int64Counter
	RollbackFailureCounter  metric.Int64Counter
	ValidationFailureCounter metric.Int64Counter
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	if err := r.initDispatchMetrics(); err != nil {
		return nil, err
	}

	if err := r.initCrisisMetrics(); err != nil {
		return nil, err
	}

	if err := r.initBackupMetrics(); err != nil {
		return nil, err
	}

	if err := r.initMigrationMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initDispatchMetrics() error {
	var err error

	r.DispatchLatency, err = r.meter.Float64Histogram(
		"crisis.dispatch.latency",
		metric.WithDescription("Emergency operation execution latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 200, 500, 1000),
	)
	if err != nil {
		return err
	}

	r.SLAViolationCounter, err = r.meter.Int64Counter(
		"crisis.dispatch.sla_violations_total",
		metric.WithDescription("Emergency operations exceeding their hard deadline"),
	)
	if err != nil {
		return err
	}

	r.DispatchCounter, err = r.meter.Int64Counter(
		"crisis.dispatch.operations_total",
		metric.WithDescription("Emergency operations executed, by kind and outcome"),
	)
	if err != nil {
		return err
	}

	r.FallbackCounter, err = r.meter.Int64Counter(
		"crisis.dispatch.fallbacks_total",
		metric.WithDescription("Emergency actions degraded to a local fallback message"),
	)
	return err
}

func (r *Registry) initCrisisMetrics() error {
	var err error

	r.CrisisDetectedCounter, err = r.meter.Int64Counter(
		"crisis.detections_total",
		metric.WithDescription("Crisis events created, by trigger and severity"),
	)
	if err != nil {
		return err
	}

	r.EscalationCounter, err = r.meter.Int64Counter(
		"crisis.escalations_total",
		metric.WithDescription("Accepted crisis level escalations"),
	)
	return err
}

func (r *Registry) initBackupMetrics() error {
	var err error

	r.BackupCounter, err = r.meter.Int64Counter(
		"safety.backup.created_total",
		metric.WithDescription("Backups written, by store type"),
	)
	if err != nil {
		return err
	}

	r.RestoreCounter, err = r.meter.Int64Counter(
		"safety.restore.attempts_total",
		metric.WithDescription("Restore attempts, by store type and outcome"),
	)
	if err != nil {
		return err
	}

	r.RestoreFailureCounter, err = r.meter.Int64Counter(
		"safety.restore.failures_total",
		metric.WithDescription("Restore attempts aborted at a hard gate"),
	)
	if err != nil {
		return err
	}

	r.RestoreDuration, err = r.meter.Float64Histogram(
		"safety.restore.duration",
		metric.WithDescription("Restore duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	return err
}

func (r *Registry) initMigrationMetrics() error {
	var err error

	r.MigrationDuration, err = r.meter.Float64Histogram(
		"safety.migration.duration",
		metric.WithDescription("Store migration duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 500, 1000, 5000, 10000, 30000),
	)
	if err != nil {
		return err
	}

	r.MigrationCounter, err = r.meter.Int64Counter(
		"safety.migration.operations_total",
		metric.WithDescription("Migrations finished, by store type and status"),
	)
	if err != nil {
		return err
	}

	r.RollbackFailureCounter, err = r.meter.Int64Counter(
		"safety.migration.rollback_failures_total",
		metric.WithDescription("Rollbacks that failed, leaving an unvalidated store"),
	)
	if err != nil {
		return err
	}

	r.ValidationFailureCounter, err = r.meter.Int64Counter(
		"safety.migration.validation_failures_total",
		metric.WithDescription("Migration validation runs failing the critical gate"),
	)
	return err
}

// RecordDispatch records an executed emergency operation
func (r *Registry) RecordDispatch(ctx context.Context, kind string, outcome string, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	r.DispatchCounter.Add(ctx, 1, attrs)
	r.DispatchLatency.Record(ctx, float64(latency.Milliseconds()), attrs)
}

// RecordSLAViolation counts a missed hard deadline
func (r *Registry) RecordSLAViolation(ctx context.Context, kind string) {
	r.SLAViolationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordCrisisDetection counts a raised crisis event
func (r *Registry) RecordCrisisDetection(ctx context.Context, trigger string, severity string) {
	r.CrisisDetectedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("severity", severity),
	))
}

// RecordEscalation counts an accepted level escalation
func (r *Registry) RecordEscalation(ctx context.Context, from string, to string) {
	r.EscalationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRestore records a restore attempt and its outcome
func (r *Registry) RecordRestore(ctx context.Context, storeType string, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("store_type", storeType),
		attribute.String("outcome", outcome),
	)
	r.RestoreCounter.Add(ctx, 1, attrs)
	r.RestoreDuration.Record(ctx, float64(d.Milliseconds()), attrs)
	if outcome != "success" {
		r.RestoreFailureCounter.Add(ctx, 1, attrs)
	}
}

// RecordMigration records a finished migration
func (r *Registry) RecordMigration(ctx context.Context, storeType string, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("store_type", storeType),
		attribute.String("status", status),
	)
	r.MigrationCounter.Add(ctx, 1, attrs)
	r.MigrationDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
