package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitpledge/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the service.
// All Record methods are safe to call on a nil or disabled provider.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	ledgerMutationsCounter      metric.Int64Counter
	ledgerMutationAmountHist    metric.Int64Histogram
	commitmentsSettledCounter   metric.Int64Counter
	contestsActiveGauge         metric.Int64UpDownCounter
	contestTransitionsCounter   metric.Int64Counter
	transientRetriesCounter     metric.Int64Counter
	natsMessagesReceivedCounter metric.Int64Counter
	natsMessagesPublished       metric.Int64Counter
	databaseQueriesCounter      metric.Int64Counter
	databaseQueryDurationHist   metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry meter provider and instruments
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.enabled {
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)

	if err := mp.createInstruments(mp.meterProvider.Meter("fitpledge")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// InitializeWithMeterProvider wires the provider to an existing meter provider, for tests
func (mp *MetricsProvider) InitializeWithMeterProvider(provider metric.MeterProvider) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if err := mp.createInstruments(provider.Meter("fitpledge")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) createInstruments(meter metric.Meter) error {
	var err error
	mp.meter = meter

	mp.ledgerMutationsCounter, err = meter.Int64Counter(
		LedgerMutationsTotal,
		metric.WithDescription("Total number of ledger mutations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger mutations counter: %w", err)
	}

	mp.ledgerMutationAmountHist, err = meter.Int64Histogram(
		LedgerMutationAmount,
		metric.WithDescription("Absolute amount moved by ledger mutations in minor units"),
		metric.WithUnit("{cent}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger mutation amount histogram: %w", err)
	}

	mp.commitmentsSettledCounter, err = meter.Int64Counter(
		CommitmentsSettledTotal,
		metric.WithDescription("Total number of settled commitments"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create commitments settled counter: %w", err)
	}

	// UpDownCounter for gauge-like behavior
	mp.contestsActiveGauge, err = meter.Int64UpDownCounter(
		ContestsActive,
		metric.WithDescription("Current number of active contests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create contests active gauge: %w", err)
	}

	mp.contestTransitionsCounter, err = meter.Int64Counter(
		ContestTransitionsTotal,
		metric.WithDescription("Total number of contest status transitions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create contest transitions counter: %w", err)
	}

	mp.transientRetriesCounter, err = meter.Int64Counter(
		TransientRetriesTotal,
		metric.WithDescription("Total number of retries after transient store failures"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transient retries counter: %w", err)
	}

	mp.natsMessagesReceivedCounter, err = meter.Int64Counter(
		NATSMessagesReceivedTotal,
		metric.WithDescription("Total number of NATS messages received"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages received counter: %w", err)
	}

	mp.natsMessagesPublished, err = meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	mp.databaseQueriesCounter, err = meter.Int64Counter(
		DatabaseQueriesTotal,
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create database queries counter: %w", err)
	}

	mp.databaseQueryDurationHist, err = meter.Float64Histogram(
		DatabaseQueryDuration,
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create database query duration histogram: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordLedgerMutation records a ledger mutation and the amount it moved
func (mp *MetricsProvider) RecordLedgerMutation(transactionType string, amount int64) {
	if !mp.isEnabled() {
		return
	}
	if amount < 0 {
		amount = -amount
	}

	attrs := metric.WithAttributes(attribute.String(LabelType, transactionType))
	mp.ledgerMutationsCounter.Add(context.Background(), 1, attrs)
	mp.ledgerMutationAmountHist.Record(context.Background(), amount, attrs)
}

// RecordCommitmentSettled records a settled commitment by outcome
func (mp *MetricsProvider) RecordCommitmentSettled(outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.commitmentsSettledCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelOutcome, outcome)),
	)
}

// RecordContestTransition records a contest status change and keeps the active gauge current
func (mp *MetricsProvider) RecordContestTransition(from, to string) {
	if !mp.isEnabled() {
		return
	}

	mp.contestTransitionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
	if to == "active" {
		mp.contestsActiveGauge.Add(context.Background(), 1)
	}
	if from == "active" {
		mp.contestsActiveGauge.Add(context.Background(), -1)
	}
}

// RecordTransientRetry records a retry of an operation after a transient store failure
func (mp *MetricsProvider) RecordTransientRetry(operation string) {
	if !mp.isEnabled() {
		return
	}

	mp.transientRetriesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelOperation, operation)),
	)
}

// RecordNATSMessageReceived records a NATS message being received
func (mp *MetricsProvider) RecordNATSMessageReceived(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesReceivedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublished.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// RecordDatabaseQuery records a database query with duration
func (mp *MetricsProvider) RecordDatabaseQuery(repository, method string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelRepository, repository),
		attribute.String(LabelMethod, method),
	)

	mp.databaseQueriesCounter.Add(context.Background(), 1, attrs)
	mp.databaseQueryDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// MeasureDatabaseQuery returns a function to measure database query duration
// Usage:
//
//	defer observability.GetMetrics().MeasureDatabaseQuery("ledger", "Apply")()
func (mp *MetricsProvider) MeasureDatabaseQuery(repository, method string) func() {
	start := time.Now()
	return func() {
		mp.RecordDatabaseQuery(repository, method, time.Since(start))
	}
}

func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.enabled
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsMu     sync.RWMutex
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	provider := NewMetricsProvider(cfg)
	if err := provider.Initialize(ctx); err != nil {
		return err
	}
	SetGlobalMetrics(provider)
	return nil
}

// SetGlobalMetrics replaces the global metrics provider
func SetGlobalMetrics(provider *MetricsProvider) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = provider
}

// GetMetrics returns the global metrics provider, which may be nil
func GetMetrics() *MetricsProvider {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	return GetMetrics().Shutdown(ctx)
}
