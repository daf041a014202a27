package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-db/logger"
)

const (
	// Tracer and meter name for database instrumentation
	instrumentationName = "go-bricks-db/database"

	// Metric names following OpenTelemetry semantic conventions
	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"

	maxDBQueryAttrLen = 2000 // Maximum length for db.query.text attribute
)

// Tracker records statement attempts for one store. Instruments are resolved from
// the global OpenTelemetry providers when the Tracker is created.
type Tracker struct {
	log      logger.Logger
	vendor   string
	store    string
	settings Settings

	tracer       trace.Tracer
	calls        metric.Int64Counter
	duration     metric.Float64Histogram
	rowsAffected metric.Int64Counter
}

// Operation describes one completed statement attempt.
type Operation struct {
	Query        string
	Args         []any
	Start        time.Time
	RowsAffected int64
	Err          error
}

// New creates a Tracker. vendor is the driver name (mysql, pgsql, sqlite) and store
// identifies the target database in logs and spans. A nil log disables log output
// but spans and metrics are still recorded.
func New(log logger.Logger, vendor, store string, settings Settings) *Tracker {
	t := &Tracker{
		log:      log,
		vendor:   normalizeDBVendor(vendor),
		store:    store,
		settings: settings,
		tracer:   otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	t.calls, err = meter.Int64Counter(
		metricDBCalls,
		metric.WithDescription("Total number of database client calls"),
	)
	logMetricError(metricDBCalls, err)

	t.duration, err = meter.Float64Histogram(
		metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	logMetricError(metricDBDuration, err)

	t.rowsAffected, err = meter.Int64Counter(
		metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"),
	)
	logMetricError(metricRowsAffected, err)

	return t
}

// logMetricError logs a metric initialization error to stderr.
// Metrics failures should not break statement execution.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

// Settings returns the tracker's settings.
func (t *Tracker) Settings() Settings {
	return t.settings
}

// Track records a completed statement attempt: one span, one call counter increment,
// one duration sample and one log line. Failures are logged at error level, attempts
// slower than the configured threshold at warn level and everything else at debug.
// sql.ErrNoRows is not treated as a failure.
func (t *Tracker) Track(ctx context.Context, op Operation) {
	if t == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	elapsed := time.Since(op.Start)

	t.span(ctx, op)
	t.record(ctx, op, elapsed)

	if t.log == nil {
		return
	}

	query := op.Query
	if t.settings.MaxQueryLength() > 0 {
		query = TruncateString(query, t.settings.MaxQueryLength())
	}

	logEvent := t.log.WithContext(ctx).WithFields(map[string]any{
		"vendor":      t.vendor,
		"store":       t.store,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       query,
	})

	if t.settings.LogQueryParameters() && len(op.Args) > 0 {
		logEvent = logEvent.WithFields(map[string]any{
			"args": SanitizeArgs(op.Args, t.settings.MaxQueryLength()),
		})
	}

	switch {
	case op.Err != nil && errors.Is(op.Err, sql.ErrNoRows):
		logEvent.Debug().Msg("Database operation returned no rows")
	case op.Err != nil:
		logEvent.Error().Err(op.Err).Msg("Database operation error")
	case elapsed > t.settings.SlowQueryThreshold():
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Int64("rows_affected", op.RowsAffected).Msg("Database operation executed")
	}
}

// span creates a client span starting at the operation start time.
func (t *Tracker) span(ctx context.Context, op Operation) {
	operation := extractDBOperation(op.Query)

	_, span := t.tracer.Start(ctx, "db."+operation,
		trace.WithTimestamp(op.Start),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	attrs := []attribute.KeyValue{
		semconv.DBSystemNameKey.String(t.vendor),
		semconv.DBQueryText(TruncateString(op.Query, maxDBQueryAttrLen)),
	}
	if t.store != "" {
		attrs = append(attrs, semconv.DBNamespace(t.store))
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table := extractTableName(op.Query); table != unknownTable {
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	span.SetAttributes(attrs...)

	if op.Err != nil && !errors.Is(op.Err, sql.ErrNoRows) {
		span.RecordError(op.Err)
		span.SetStatus(codes.Error, op.Err.Error())
	}
}

// record emits the call counter, duration histogram and rows affected counter.
func (t *Tracker) record(ctx context.Context, op Operation, elapsed time.Duration) {
	isError := op.Err != nil && !errors.Is(op.Err, sql.ErrNoRows)

	commonAttrs := []attribute.KeyValue{
		attribute.String("db.system", t.vendor),
		attribute.String("db.operation.name", extractDBOperation(op.Query)),
		attribute.String("db.sql.table", extractTableName(op.Query)),
	}

	if t.calls != nil {
		counterAttrs := make([]attribute.KeyValue, 0, len(commonAttrs)+1)
		counterAttrs = append(counterAttrs, commonAttrs...)
		counterAttrs = append(counterAttrs, attribute.Bool("error", isError))
		t.calls.Add(ctx, 1, metric.WithAttributes(counterAttrs...))
	}

	if t.duration != nil {
		t.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, metric.WithAttributes(commonAttrs...))
	}

	if t.rowsAffected != nil && op.RowsAffected > 0 && !isError {
		t.rowsAffected.Add(ctx, op.RowsAffected, metric.WithAttributes(commonAttrs...))
	}
}
