package generate

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics wraps the generation instruments. Instrument construction
// failures degrade to no-ops rather than blocking startup.
type metrics struct {
	chunks    metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics(logger *slog.Logger) *metrics {
	meter := otel.Meter("github.com/lectiolabs/lectio-core/generate")
	m := &metrics{}
	var err error
	if m.chunks, err = meter.Int64Counter("lectio.chunks.synthesized",
		metric.WithDescription("Provider calls that returned audio")); err != nil {
		logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	if m.completed, err = meter.Int64Counter("lectio.sections.completed",
		metric.WithDescription("Sections generated to completion")); err != nil {
		logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	if m.failed, err = meter.Int64Counter("lectio.sections.failed",
		metric.WithDescription("Sections that ended in error")); err != nil {
		logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	if m.duration, err = meter.Float64Histogram("lectio.sections.generation_seconds",
		metric.WithDescription("Wall-clock seconds per generated section")); err != nil {
		logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return m
}

func (m *metrics) chunkSynthesized(ctx context.Context) {
	if m.chunks != nil {
		m.chunks.Add(ctx, 1)
	}
}

func (m *metrics) sectionCompleted(ctx context.Context, generationSec float64) {
	if m.completed != nil {
		m.completed.Add(ctx, 1)
	}
	if m.duration != nil {
		m.duration.Record(ctx, generationSec)
	}
}

func (m *metrics) sectionFailed(ctx context.Context, kind string) {
	if m.failed != nil {
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
