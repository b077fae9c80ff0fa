package rpc

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/assert"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	assert.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func outcomeOf(t *testing.T, attrs attribute.Set) string {
	t.Helper()
	v, ok := attrs.Value("outcome")
	assert.True(t, ok)
	return v.AsString()
}

func TestMintMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	open := 3
	metrics, err := newMintMetrics(provider.Meter(meterName), func() int { return open })
	assert.NoError(t, err)

	ctx := context.Background()
	metrics.record(ctx, "success", 2*time.Second)
	metrics.record(ctx, "success", time.Second)
	metrics.record(ctx, "error", 500*time.Millisecond)

	data := collect(t, reader)

	attempts, ok := data["minter.mint.attempts"].(metricdata.Sum[int64])
	assert.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range attempts.DataPoints {
		counts[outcomeOf(t, dp.Attributes)] = dp.Value
	}
	assert.Equal(t, counts["success"], int64(2))
	assert.Equal(t, counts["error"], int64(1))

	duration, ok := data["minter.mint.duration"].(metricdata.Histogram[float64])
	assert.True(t, ok)
	for _, dp := range duration.DataPoints {
		if outcomeOf(t, dp.Attributes) == "success" {
			assert.Equal(t, dp.Count, uint64(2))
			assert.Equal(t, dp.Sum, 3.0)
		}
	}

	gauge, ok := data["minter.sessions.open"].(metricdata.Gauge[int64])
	assert.True(t, ok)
	assert.Equal(t, len(gauge.DataPoints), 1)
	assert.Equal(t, gauge.DataPoints[0].Value, int64(3))

	open = 5
	gauge = collect(t, reader)["minter.sessions.open"].(metricdata.Gauge[int64])
	assert.Equal(t, gauge.DataPoints[0].Value, int64(5))
}

func TestMintMetrics_NilIsNoop(t *testing.T) {
	var metrics *mintMetrics
	metrics.record(context.Background(), "success", time.Second)
}

// memoryExporter keeps every exported log record
type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range records {
		e.records = append(e.records, records[i].Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) Records() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdklog.Record(nil), e.records...)
}

func TestOTelLogHook(t *testing.T) {
	exporter := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	logger := zerolog.New(io.Discard).Hook(newOTelLogHook(provider.Logger("test")))
	logger.Info().Str("tx", "0xabc").Msg("NFT minted")
	logger.Warn().Msg("Session limit reached")
	logger.Error().Msg("Error minting NFT")
	logger.Log().Msg("no level, not forwarded")

	records := exporter.Records()
	assert.Equal(t, len(records), 3)

	assert.Equal(t, records[0].Body().AsString(), "NFT minted")
	assert.Equal(t, records[0].Severity(), otellog.SeverityInfo)
	assert.Equal(t, records[0].SeverityText(), "info")

	assert.Equal(t, records[1].Severity(), otellog.SeverityWarn)
	assert.Equal(t, records[2].Severity(), otellog.SeverityError)
	assert.Equal(t, records[2].Body().AsString(), "Error minting NFT")
}
