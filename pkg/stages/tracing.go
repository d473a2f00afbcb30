package stages

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wehubfusion/Daedalus/pkg/pipeline"
	"github.com/wehubfusion/Daedalus/pkg/record"
)

// Traced wraps a mapper so each record opens a span named after the stage,
// carrying the record's correlation id and source. Failures are recorded on
// the span and re-returned unchanged, so the error policy still applies.
func Traced(stageName string, mapper pipeline.Mapper[*record.Record]) pipeline.Mapper[*record.Record] {
	tracer := otel.Tracer("daedalus/stages")

	return func(ctx context.Context, rec *record.Record, emit pipeline.Emit[*record.Record]) error {
		ctx, span := tracer.Start(ctx, "stage.process",
			trace.WithAttributes(
				attribute.String("stage.name", stageName),
				attribute.String("record.correlation_id", rec.CorrelationID),
				attribute.String("record.source", rec.Source),
			))
		defer span.End()

		err := mapper(ctx, rec, emit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "record processed")
		return nil
	}
}
