package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Cogwheel-Validator/spectra-nft-minter/minter/rpc"

type mintMetrics struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// newMintMetrics registers the mint instruments on meter.
// openSessions is observed on every collection.
func newMintMetrics(meter metric.Meter, openSessions func() int) (*mintMetrics, error) {
	attempts, err := meter.Int64Counter(
		"minter.mint.attempts",
		metric.WithDescription("Mint submissions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"minter.mint.duration",
		metric.WithDescription("Time from submission to confirmation or failure"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"minter.sessions.open",
		metric.WithDescription("Page views currently held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(openSessions()))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return &mintMetrics{attempts: attempts, duration: duration}, nil
}

func (m *mintMetrics) record(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
