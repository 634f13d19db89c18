package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/logicstates/logger"
)

// Logger provides logging hooks for Engine execution.
type Logger interface {
	VisitStarted(ctx context.Context, machine, state string, step Step, visitID string)
	StepCompleted(ctx context.Context, machine, state string, step Step, ctl StepControl, duration time.Duration, err error)
	TransitionExecuted(ctx context.Context, machine, from, to string)
	Resumed(ctx context.Context, cp Checkpoint)
}

// DefaultLogger implements Logger on the context logger of the logger package.
type DefaultLogger struct{}

// NewDefaultLogger creates a new default logger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

func (l *DefaultLogger) VisitStarted(ctx context.Context, machine, state string, step Step, visitID string) {
	logger.Get(ctx).InfoContext(ctx, "State entered",
		"machine", machine,
		"state", state,
		"initial_step", step.String(),
		"visit_id", visitID,
	)
}

func (l *DefaultLogger) StepCompleted(
	ctx context.Context,
	machine, state string,
	step Step,
	ctl StepControl,
	duration time.Duration,
	err error,
) {
	log := logger.Get(ctx)

	if err != nil {
		log.ErrorContext(ctx, "Step failed",
			"machine", machine,
			"state", state,
			"step", step.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)

		return
	}

	// unsatisfied polls are frequent
	level := slog.LevelInfo
	if ctl == RepeatWait {
		level = slog.LevelDebug
	}

	log.Log(ctx, level, "Step completed",
		"machine", machine,
		"state", state,
		"step", step.String(),
		"control", ctl.String(),
		"duration_ms", duration.Milliseconds(),
	)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, machine, from, to string) {
	logger.Get(ctx).InfoContext(ctx, "Transition executed",
		"machine", machine,
		"from", from,
		"to", to,
	)
}

func (l *DefaultLogger) Resumed(ctx context.Context, cp Checkpoint) {
	logger.Get(ctx).InfoContext(ctx, "Resumed from checkpoint",
		"machine", cp.Machine,
		"state", cp.State,
		"step", cp.Step.String(),
		"visit_id", cp.VisitID,
		"presenting", cp.Presenting,
	)
}

type nopLogger struct{}

func (nopLogger) VisitStarted(context.Context, string, string, Step, string) {}

func (nopLogger) StepCompleted(context.Context, string, string, Step, StepControl, time.Duration, error) {
}

func (nopLogger) TransitionExecuted(context.Context, string, string, string) {}

func (nopLogger) Resumed(context.Context, Checkpoint) {}
