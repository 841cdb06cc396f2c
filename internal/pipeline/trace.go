package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/robert-malhotra/go-rasterstream/internal/pipeline"

// startPassSpan opens the span covering one pass.
func startPassSpan(ctx context.Context, cfg *Config, blocks int) (context.Context, trace.Span) {
	tr := otel.Tracer(tracerName)
	return tr.Start(ctx, "pipeline."+cfg.Name,
		trace.WithAttributes(
			attribute.Int("blocks", blocks),
			attribute.Int("producers", cfg.Producers),
			attribute.Int("consumers", cfg.Consumers),
			attribute.Int("queue.capacity", cfg.Capacity),
		),
	)
}

// endPassSpan records the pass outcome and closes the span.
func endPassSpan(span trace.Span, st Stats, err error) {
	span.SetAttributes(
		attribute.Int("queue.high_water", st.Read.HighWater),
		attribute.Int64("queue.push_waits", int64(st.Read.PushWaits)),
		attribute.Int64("queue.pop_waits", int64(st.Read.PopWaits)),
		attribute.Int("pool.blocks", st.Pool.Created),
	)
	if st.Writers > 0 {
		span.SetAttributes(
			attribute.Int("writers", st.Writers),
			attribute.Int("write_queue.high_water", st.Write.HighWater),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
