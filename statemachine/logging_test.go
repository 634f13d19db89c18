package statemachine

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/logger"
	"github.com/stretchr/testify/assert"
)

func TestEngineMutesRepeatedPolls(t *testing.T) {
	t.Parallel()

	var polls int

	m := single(t, "engine-muted-polls", NewState[testInit, Exec]("Poll").
		InitialStep(CommittedWait).
		Wait(None, func(ctx context.Context, _ Exec, _ Transitions) (StepControl, error) {
			polls++
			logger.Get(ctx).Info("Polling", "poll", polls)

			if polls%4 != 0 {
				return RepeatWait, nil
			}

			return GoNext, nil
		}).
		PostWait(None, func(_ context.Context, _ Exec, next Transitions) (StepControl, error) {
			return ExitState, next.SetNextState("self")
		}))

	e := newTestEngine(t, m, criticaldata.NewMemoryStore(), nil)

	var buf bytes.Buffer

	ctx := logger.WithLogger(t.Context(), slog.New(slog.NewTextHandler(&buf, nil)))

	// four polls, the exit, then the first poll of the next visit
	for range 6 {
		_, err := e.Tick(ctx)
		assert.NoError(t, err)
	}

	assert.Equal(t, 5, polls)
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=Polling"))
	assert.Contains(t, buf.String(), "poll=1")
	assert.Contains(t, buf.String(), "poll=5")
}
