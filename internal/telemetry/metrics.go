package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics.
type Metrics struct {
	RequestCounter        metric.Int64Counter
	RequestDuration       metric.Float64Histogram
	QueueDepth            metric.Int64Counter
	JobDuration           metric.Float64Histogram
	ReconciliationOutcome metric.Int64Counter
	SearchDuration        metric.Float64Histogram
	CircuitBreakerState   metric.Int64Counter
	EventsDropped         metric.Int64Counter
	DatabaseOperations    metric.Int64Counter
}

// InitMetrics initializes all application metrics.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ingestcore")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Counter(
		"processing_queue.jobs.total",
		metric.WithDescription("Jobs enqueued, grouped by lane and outcome"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"processing_job.duration",
		metric.WithDescription("End-to-end processing job duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	reconciliationOutcome, err := meter.Int64Counter(
		"callback_reconciler.outcomes.total",
		metric.WithDescription("Callback reconciliation outcomes"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"hybrid_search.duration",
		metric.WithDescription("Hybrid search request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Embedder circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	eventsDropped, err := meter.Int64Counter(
		"event_bus.dropped.total",
		metric.WithDescription("Events dropped for exceeding a subscriber's delivery timeout"),
	)
	if err != nil {
		return nil, err
	}

	databaseOperations, err := meter.Int64Counter(
		"database.operations.total",
		metric.WithDescription("Total database operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:        requestCounter,
		RequestDuration:       requestDuration,
		QueueDepth:            queueDepth,
		JobDuration:           jobDuration,
		ReconciliationOutcome: reconciliationOutcome,
		SearchDuration:        searchDuration,
		CircuitBreakerState:   circuitBreakerState,
		EventsDropped:         eventsDropped,
		DatabaseOperations:    databaseOperations,
	}, nil
}

// RecordRequest records HTTP request metrics.
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordJobEnqueued records a job entering the queue for a given lane.
func (m *Metrics) RecordJobEnqueued(lane string) {
	m.QueueDepth.Add(context.Background(), 1, metric.WithAttributes(attribute.String("lane", lane)))
}

// RecordJobDuration records a completed job's end-to-end duration.
func (m *Metrics) RecordJobDuration(lane, outcome string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("lane", lane),
		attribute.String("outcome", outcome),
	}
	m.JobDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordReconciliation records a CallbackReconciler outcome.
func (m *Metrics) RecordReconciliation(outcome string) {
	m.ReconciliationOutcome.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSearch records a HybridSearch request's latency.
func (m *Metrics) RecordSearch(mode string, duration float64) {
	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordCircuitBreakerState records circuit breaker state changes.
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordEventDropped records an EventBus delivery dropped on timeout.
func (m *Metrics) RecordEventDropped(eventType string) {
	m.EventsDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordDatabaseOperation records database operation metrics.
func (m *Metrics) RecordDatabaseOperation(operation, collection string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.collection", collection),
		attribute.Bool("db.success", success),
	}

	m.DatabaseOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
