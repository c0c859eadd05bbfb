package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// TracingValidator wraps a domain.TransitionValidator with OpenTelemetry tracing.
// Rejections are recorded as span events rather than errors: they are
// expected outcomes of user input.
type TracingValidator struct {
	next   domain.TransitionValidator
	tracer trace.Tracer
}

// Compile-time check: TracingValidator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*TracingValidator)(nil)

// NewTracingValidator creates a tracing decorator around the given validator.
func NewTracingValidator(next domain.TransitionValidator) *TracingValidator {
	return &TracingValidator{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (v *TracingValidator) Evaluate(ctx context.Context, table domain.TransitionTable, from, to domain.State) error {
	ctx, span := v.tracer.Start(ctx, "TransitionValidator.Evaluate",
		trace.WithAttributes(
			attribute.String("transition.from", string(from)),
			attribute.String("transition.to", string(to)),
			attribute.Int("table.states", len(table.States())),
		),
	)
	defer span.End()

	err := v.next.Evaluate(ctx, table, from, to)
	outcome := domain.Outcome(err)
	span.SetAttributes(attribute.String("transition.outcome", outcome))
	if outcome == domain.OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
