package gamestates

import (
	"testing"

	"github.com/amp-labs/logicstates/actions"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/platform/platformtest"
	"github.com/amp-labs/logicstates/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitStartUnwinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		refuse string
		calls  []string
	}{
		{
			refuse: "CommitGameCycle",
			calls:  []string{"CommitGameCycle"},
		},
		{
			refuse: "PlaceStartingBet",
			calls:  []string{"CommitGameCycle", "PlaceStartingBet[5]", "UncommitGameCycle"},
		},
		{
			refuse: "CommitBet",
			calls:  []string{"CommitGameCycle", "PlaceStartingBet[5]", "CommitBet", "UncommitGameCycle"},
		},
		{
			refuse: "EnrollGameCycle",
			calls: []string{
				"CommitGameCycle", "PlaceStartingBet[5]", "CommitBet", "EnrollGameCycle",
				"UncommitBet", "UncommitGameCycle",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.refuse, func(t *testing.T) {
			t.Parallel()

			ctx := testContext(t)
			r := newRig(t, Options{})
			r.coplayer.Refuse(tt.refuse)
			r.presentation.Queue(IdleState, actions.CommitStart, startBet(5))

			reports := r.engine.Steps(ctx, 3)

			assert.Equal(t, statemachine.BackToPreWait, reports[2].Control)
			r.engine.AssertPosition(IdleState, statemachine.CommittedPreWait)
			assert.Equal(t, tt.calls, r.coplayer.Calls())
			assert.Equal(t, platform.CycleIdle, r.coplayer.GameCycleState())
			assert.Empty(t, r.info.CycleID())
			assert.False(t, r.hasCycle(t))
		})
	}
}

func TestCommitStartFailureIsFatal(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	r := newRig(t, Options{})
	r.coplayer.Fail("CommitBet")
	r.presentation.Queue(IdleState, actions.CommitStart, startBet(5))

	r.engine.Steps(ctx, 2)

	_, err := r.engine.Tick(ctx)
	require.ErrorIs(t, err, platformtest.ErrPlatform)
	assert.Equal(t, []string{"CommitGameCycle", "PlaceStartingBet[5]", "CommitBet", "UncommitGameCycle"}, r.coplayer.Calls())
	assert.False(t, r.hasCycle(t))
}

func TestIdleIgnoresUnrecognizedAction(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	r := newRig(t, Options{})
	r.presentation.Queue(IdleState, actions.StartNewTheme, actions.StartNewThemeParam{ThemeID: "t1"})

	reports := r.engine.Steps(ctx, 3)

	assert.Equal(t, statemachine.BackToPreWait, reports[2].Control)
	assert.Empty(t, r.coplayer.Calls())

	// the presentation is restarted
	r.engine.Steps(ctx, 1)
	assert.Equal(t, []string{IdleState, IdleState}, r.presentation.Started())
}

func TestIdlePayloadMismatch(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	r := newRig(t, Options{})
	r.presentation.Queue(IdleState, actions.CommitStart, actions.AddCreditsParam{Amount: 5})

	r.engine.Steps(ctx, 2)

	_, err := r.engine.Tick(ctx)
	require.ErrorIs(t, err, statemachine.ErrUnexpectedAction)
	require.ErrorIs(t, err, actions.ErrPayloadMismatch)
	assert.True(t, statemachine.IsLogicStateError(err))
	assert.Empty(t, r.coplayer.Calls())
}

func TestIdleSessionReset(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	r := newRig(t, Options{})

	reports := r.engine.Steps(ctx, 2)
	require.Equal(t, statemachine.RepeatWait, reports[1].Control)

	r.coplayer.Reset.Publish(platform.SessionParamsReset{Denomination: 2})

	reports = r.engine.Steps(ctx, 2)
	assert.Equal(t, statemachine.GoNext, reports[0].Control)
	assert.Equal(t, statemachine.BackToPreWait, reports[1].Control)
	r.engine.AssertPosition(IdleState, statemachine.CommittedPreWait)

	// the reset was consumed
	r.engine.Steps(ctx, 1)
	report := r.engine.Steps(ctx, 1)[0]
	assert.Equal(t, statemachine.RepeatWait, report.Control)
}

func TestIdleIgnoresResetFromPreviousCycle(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	r := newRig(t, Options{})
	r.coplayer.AutoRespond = true
	r.presentation.Queue(IdleState, actions.CommitStart, startBet(5))
	r.presentation.AutoComplete(PlayState)

	r.engine.RunUntilState(ctx, PlayState, 20)
	r.coplayer.Reset.Publish(platform.SessionParamsReset{Denomination: 2})
	r.engine.RunUntilState(ctx, IdleState, 20)

	r.presentation.Queue(IdleState, actions.CommitStart, startBet(7))
	r.engine.RunUntilState(ctx, EnrollState, 3)

	assert.Contains(t, r.coplayer.Calls(), "PlaceStartingBet[7]")
}
