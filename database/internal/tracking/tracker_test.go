package tracking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/gaborage/go-bricks-db/config"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings(nil)
	assert.Equal(t, DefaultSlowQueryThreshold, s.SlowQueryThreshold())
	assert.Equal(t, DefaultMaxQueryLength, s.MaxQueryLength())
	assert.False(t, s.LogQueryParameters())
}

func TestNewSettingsFromConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{}
	cfg.Query.Slow.Threshold = time.Second
	cfg.Query.Log.MaxLength = 64
	cfg.Query.Log.Parameters = true

	s := NewSettings(cfg)
	assert.Equal(t, time.Second, s.SlowQueryThreshold())
	assert.Equal(t, 64, s.MaxQueryLength())
	assert.True(t, s.LogQueryParameters())

	cfg.Query.Slow.Threshold = -1
	cfg.Query.Log.MaxLength = 0
	s = NewSettings(cfg)
	assert.Equal(t, DefaultSlowQueryThreshold, s.SlowQueryThreshold())
	assert.Equal(t, DefaultMaxQueryLength, s.MaxQueryLength())
}

func TestTrackRecordsSuccess(t *testing.T) {
	rec := newRecordingLogger()
	settings := Settings{slowQueryThreshold: time.Second, maxQueryLength: 50}
	tracker := New(rec, "sqlite", "sqlite:test.db", settings)

	tracker.Track(context.Background(), Operation{
		Query:        "INSERT INTO t (id) VALUES (?)",
		Args:         []any{int64(1)},
		Start:        time.Now().Add(-5 * time.Millisecond),
		RowsAffected: 1,
	})

	events := rec.events()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, levelDebug, event.Level)
	assert.Equal(t, "Database operation executed", event.Msg)
	assert.Equal(t, "INSERT INTO t (id) VALUES (?)", event.Fields["query"])
	assert.Equal(t, "sqlite", event.Fields["vendor"])
	assert.Equal(t, "sqlite:test.db", event.Fields["store"])
	assert.Equal(t, int64(1), event.Fields["rows_affected"])
	assert.NotContains(t, event.Fields, "args")
}

func TestTrackTruncatesQueryAndLogsArgs(t *testing.T) {
	rec := newRecordingLogger()
	settings := Settings{slowQueryThreshold: time.Second, maxQueryLength: 5, logQueryParameters: true}
	tracker := New(rec, "mysql", "mysql@localhost:shop", settings)

	tracker.Track(context.Background(), Operation{
		Query: "SELECT something",
		Args:  []any{"verylongparameter", []byte{0x1, 0x2}, nil},
		Start: time.Now(),
	})

	events := rec.events()
	require.Len(t, events, 1)
	assert.Equal(t, "SE...", events[0].Fields["query"])
	assert.Equal(t, []any{"ve...", "<bytes len=2>", nil}, events[0].Fields["args"])
}

func TestTrackLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		threshold time.Duration
		level     string
		msg       string
	}{
		{name: "error", err: errors.New("boom"), threshold: time.Second, level: levelError, msg: "Database operation error"},
		{name: "no_rows", err: sql.ErrNoRows, threshold: time.Second, level: levelDebug, msg: "Database operation returned no rows"},
		{name: "slow", threshold: time.Nanosecond, level: levelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecordingLogger()
			tracker := New(rec, "pgsql", "pgsql@localhost:app", Settings{slowQueryThreshold: tt.threshold})

			tracker.Track(context.Background(), Operation{
				Query: "SELECT 1",
				Start: time.Now().Add(-time.Millisecond),
				Err:   tt.err,
			})

			events := rec.events()
			require.Len(t, events, 1)
			assert.Equal(t, tt.level, events[0].Level)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, events[0].Msg)
			} else {
				assert.Contains(t, events[0].Msg, "Slow database operation detected")
			}
			if tt.level == levelError {
				assert.Equal(t, tt.err, events[0].Err)
			}
		})
	}
}

func TestTrackNilSafe(t *testing.T) {
	var tracker *Tracker
	assert.NotPanics(t, func() {
		tracker.Track(context.Background(), Operation{Query: "SELECT 1", Start: time.Now()})
	})

	quiet := New(nil, "sqlite", "", NewSettings(nil))
	assert.NotPanics(t, func() {
		//nolint:staticcheck // nil context is tolerated
		quiet.Track(nil, Operation{Query: "SELECT 1", Start: time.Now()})
	})
}

func TestTrackCreatesSpan(t *testing.T) {
	exporter := setupTestTracerProvider(t)
	tracker := New(nil, "pgsql", "pgsql@localhost:app", NewSettings(nil))

	query := "INSERT INTO users (name, email) VALUES ($1, $2)"
	tracker.Track(context.Background(), Operation{Query: query, Start: time.Now().Add(-25 * time.Millisecond)})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.insert", span.Name)
	assert.Equal(t, codes.Unset, span.Status.Code)
	assert.GreaterOrEqual(t, span.EndTime.Sub(span.StartTime), 25*time.Millisecond)

	attrs := make(map[string]any)
	for _, attr := range span.Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}
	assert.Equal(t, "postgresql", attrs["db.system.name"])
	assert.Equal(t, query, attrs["db.query.text"])
	assert.Equal(t, "insert", attrs["db.operation.name"])
	assert.Equal(t, "users", attrs["db.collection.name"])
	assert.Equal(t, "pgsql@localhost:app", attrs["db.namespace"])
}

func TestTrackSpanErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected codes.Code
	}{
		{name: "failure", err: errors.New("syntax error"), expected: codes.Error},
		{name: "no_rows", err: sql.ErrNoRows, expected: codes.Unset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTestTracerProvider(t)
			tracker := New(nil, "mysql", "", NewSettings(nil))

			tracker.Track(context.Background(), Operation{Query: "SELECT * FROM t", Start: time.Now(), Err: tt.err})

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.expected, spans[0].Status.Code)
		})
	}
}

func TestTrackRecordsMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	tracker := New(nil, "sqlite", "sqlite:test.db", NewSettings(nil))
	ctx := context.Background()

	tracker.Track(ctx, Operation{Query: "UPDATE t SET name = ?", Start: time.Now().Add(-50 * time.Millisecond), RowsAffected: 3})
	tracker.Track(ctx, Operation{Query: "SELECT * FROM t", Start: time.Now(), Err: errors.New("boom"), RowsAffected: 9})

	rm := collectMetrics(t, reader)

	calls, ok := findMetric(rm, metricDBCalls)
	require.True(t, ok)
	assert.Equal(t, int64(2), sumInt64(t, calls))

	rows, ok := findMetric(rm, metricRowsAffected)
	require.True(t, ok)
	assert.Equal(t, int64(3), sumInt64(t, rows), "failed operations do not count rows")

	duration, ok := findMetric(rm, metricDBDuration)
	require.True(t, ok)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
	var total float64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
	}
	assert.GreaterOrEqual(t, total, 50.0)
}
