package tracking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/go-bricks-db/logger"
)

const (
	levelInfo  = "info"
	levelError = "error"
	levelDebug = "debug"
	levelWarn  = "warn"
	levelFatal = "fatal"
)

type eventRecord struct {
	Level  string
	Msg    string
	Err    error
	Fields map[string]any
}

type recordingLogger struct {
	sink   *recordingSink
	fields map[string]any
}

type recordingSink struct {
	events []*eventRecord
}

type recordingEvent struct {
	record *eventRecord
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{
		sink:   &recordingSink{},
		fields: map[string]any{},
	}
}

func (l *recordingLogger) clone() *recordingLogger {
	cloned := &recordingLogger{
		sink:   l.sink,
		fields: make(map[string]any, len(l.fields)),
	}
	for k, v := range l.fields {
		cloned.fields[k] = v
	}
	return cloned
}

func (l *recordingLogger) newEvent(level string) logger.LogEvent {
	record := &eventRecord{
		Level:  level,
		Fields: make(map[string]any, len(l.fields)),
	}
	for k, v := range l.fields {
		record.Fields[k] = v
	}
	l.sink.events = append(l.sink.events, record)
	return &recordingEvent{record: record}
}

func (l *recordingLogger) Info() logger.LogEvent  { return l.newEvent(levelInfo) }
func (l *recordingLogger) Error() logger.LogEvent { return l.newEvent(levelError) }
func (l *recordingLogger) Debug() logger.LogEvent { return l.newEvent(levelDebug) }
func (l *recordingLogger) Warn() logger.LogEvent  { return l.newEvent(levelWarn) }
func (l *recordingLogger) Fatal() logger.LogEvent { return l.newEvent(levelFatal) }

func (l *recordingLogger) WithContext(_ any) logger.Logger { return l.clone() }

func (l *recordingLogger) WithFields(fields map[string]any) logger.Logger {
	cloned := l.clone()
	for k, v := range fields {
		cloned.fields[k] = v
	}
	return cloned
}

func (l *recordingLogger) events() []*eventRecord {
	return l.sink.events
}

func (e *recordingEvent) Msg(msg string) {
	e.record.Msg = msg
}

func (e *recordingEvent) Msgf(format string, args ...any) {
	e.record.Msg = fmt.Sprintf(format, args...)
}

func (e *recordingEvent) Err(err error) logger.LogEvent {
	e.record.Err = err
	return e
}

func (e *recordingEvent) Str(key, value string) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Bool(key string, value bool) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Int(key string, value int) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Int64(key string, value int64) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Uint64(key string, value uint64) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.record.Fields[key] = d
	return e
}

func (e *recordingEvent) Interface(key string, value any) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

// setupTestTracerProvider installs an in-memory tracer provider for the test.
func setupTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	originalTP := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Failed to shutdown test tracer provider: %v", err)
		}
		otel.SetTracerProvider(originalTP)
	})

	return exporter
}

// setupTestMeterProvider installs a meter provider backed by a manual reader.
func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	originalMP := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("Failed to shutdown test meter provider: %v", err)
		}
		otel.SetMeterProvider(originalMP)
	})

	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}
