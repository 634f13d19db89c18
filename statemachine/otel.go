package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/logicstates/statemachine"

// startStepSpan creates the span of one step call. Uses the global tracer
// provider installed by the telemetry package. The caller ends the span.
//
//nolint:spancheck // Span lifecycle managed by caller
func startStepSpan(
	ctx context.Context,
	machine, state string,
	step Step,
	weight TransactionWeight,
	visitID string,
) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, state+"."+step.String())
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("state", state),
		attribute.String("step", step.String()),
		attribute.String("weight", weight.String()),
		attribute.String("visit_id", visitID),
	)

	return ctx, span
}

func endStepSpan(span trace.Span, ctl StepControl, next string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("control", ctl.String()))

		if next != "" {
			span.SetAttributes(attribute.String("next_state", next))
		}

		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
