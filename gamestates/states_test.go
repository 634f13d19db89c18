package gamestates

import (
	"testing"

	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/platform/platformtest"
	"github.com/amp-labs/logicstates/statemachine"
	smtesting "github.com/amp-labs/logicstates/statemachine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderExec struct {
	*smtesting.Recorder

	lib *platform.CoplayerLib
}

func (e recorderExec) Coplayer() *platform.CoplayerLib {
	return e.lib
}

func newRecorderExec(coplayer *platformtest.Coplayer) recorderExec {
	return recorderExec{
		Recorder: &smtesting.Recorder{},
		lib:      coplayer.Lib(coplayerID, platformtest.NewServices(), nil),
	}
}

// wired connects every label of s to a state named after the label, so
// Recorder.Next reports the label taken.
func wired(s *State) *State {
	for _, label := range s.Labels() {
		s.MustWire(label, newState(label).MustBuild())
	}

	return s
}

func TestWaitIsIdempotent(t *testing.T) {
	t.Parallel()

	k := newKeys("wait")

	tests := []struct {
		name   string
		state  *State
		before platform.CycleState
	}{
		{name: IdleState, state: newIdle(k, NewCycleInfo())},
		{name: EnrollState, state: newEnroll(k, NewCycleInfo()), before: platform.CycleEnrollPending},
		{name: EvaluationState, state: newEvaluation(k, NewCycleInfo(), nil), before: platform.CyclePlaying},
		{name: PlayState, state: newPlay(nil), before: platform.CyclePlaying},
		{name: FinalizeState, state: newFinalize(), before: platform.CycleFinalizePending},
		{name: AbortState, state: newAbort(), before: platform.CycleAbortPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			coplayer := platformtest.NewCoplayer()
			coplayer.SetState(tt.before)

			exec := newRecorderExec(coplayer)
			s := wired(tt.state)

			for range 5 {
				ctl, err := s.Invoke(t.Context(), statemachine.CommittedWait, exec)
				require.NoError(t, err)
				assert.Equal(t, statemachine.RepeatWait, ctl)
			}

			assert.Empty(t, exec.Next)
			assert.Zero(t, exec.Started)
			assert.Empty(t, coplayer.Calls())
			assert.Equal(t, tt.before, coplayer.GameCycleState())
		})
	}
}

func TestFinalizeRestartSafety(t *testing.T) {
	t.Parallel()

	t.Run("settled before wait", func(t *testing.T) {
		t.Parallel()

		coplayer := platformtest.NewCoplayer()
		coplayer.AutoRespond = true
		exec := newRecorderExec(coplayer)

		ctl, err := wired(newFinalize()).Invoke(t.Context(), statemachine.CommittedPreWait, exec)
		require.NoError(t, err)
		assert.Equal(t, statemachine.ExitState, ctl)
		assert.Equal(t, LabelComplete, exec.Next)
		assert.Equal(t, []string{"FinalizeOutcome"}, coplayer.Calls())
	})

	t.Run("pending", func(t *testing.T) {
		t.Parallel()

		coplayer := platformtest.NewCoplayer()
		exec := newRecorderExec(coplayer)
		s := wired(newFinalize())

		ctl, err := s.Invoke(t.Context(), statemachine.CommittedPreWait, exec)
		require.NoError(t, err)
		assert.Equal(t, statemachine.GoNext, ctl)

		ctl, err = s.Invoke(t.Context(), statemachine.CommittedWait, exec)
		require.NoError(t, err)
		assert.Equal(t, statemachine.RepeatWait, ctl)

		coplayer.CompleteFinalize()

		ctl, err = s.Invoke(t.Context(), statemachine.CommittedWait, exec)
		require.NoError(t, err)
		assert.Equal(t, statemachine.GoNext, ctl)

		ctl, err = s.Invoke(t.Context(), statemachine.CommittedPostWait, exec)
		require.NoError(t, err)
		assert.Equal(t, statemachine.ExitState, ctl)
		assert.Equal(t, LabelComplete, exec.Next)
	})

	t.Run("post wait without event", func(t *testing.T) {
		t.Parallel()

		coplayer := platformtest.NewCoplayer()
		coplayer.SetState(platform.CycleFinalizePending)

		_, err := wired(newFinalize()).Invoke(t.Context(), statemachine.CommittedPostWait, newRecorderExec(coplayer))
		require.ErrorIs(t, err, statemachine.ErrEventNotRecorded)
		assert.True(t, statemachine.IsLogicStateError(err))
	})
}

func TestAbortRestartSafety(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		auto    bool
		refuse  bool
		control statemachine.StepControl
		next    string
	}{
		{name: "settled before wait", auto: true, control: statemachine.ExitState, next: LabelComplete},
		{name: "rejected", refuse: true, control: statemachine.ExitState, next: LabelRejected},
		{name: "pending", control: statemachine.GoNext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			coplayer := platformtest.NewCoplayer()
			coplayer.AutoRespond = tt.auto

			if tt.refuse {
				coplayer.Refuse("AbortGameCycle")
			}

			exec := newRecorderExec(coplayer)

			ctl, err := wired(newAbort()).Invoke(t.Context(), statemachine.CommittedPreWait, exec)
			require.NoError(t, err)
			assert.Equal(t, tt.control, ctl)
			assert.Equal(t, tt.next, exec.Next)
		})
	}
}

func TestAbortFailure(t *testing.T) {
	t.Parallel()

	coplayer := platformtest.NewCoplayer()
	coplayer.Fail("AbortGameCycle")

	_, err := wired(newAbort()).Invoke(t.Context(), statemachine.CommittedPreWait, newRecorderExec(coplayer))
	require.ErrorIs(t, err, platformtest.ErrPlatform)
}

func TestEnrollResultAlreadyAvailable(t *testing.T) {
	t.Parallel()

	coplayer := platformtest.NewCoplayer()
	coplayer.RespondEnroll(true)

	exec := newRecorderExec(coplayer)
	s := wired(newEnroll(newKeys("enroll"), NewCycleInfo()))

	for _, step := range []statemachine.Step{statemachine.CommittedPreWait, statemachine.CommittedWait} {
		ctl, err := s.Invoke(t.Context(), step, exec)
		require.NoError(t, err)
		assert.Equal(t, statemachine.GoNext, ctl, step.String())
	}

	ctl, err := s.Invoke(t.Context(), statemachine.CommittedPostWait, exec)
	require.NoError(t, err)
	assert.Equal(t, statemachine.ExitState, ctl)
	assert.Equal(t, LabelSuccess, exec.Next)
}

func TestEnrollFailureNeedsTransaction(t *testing.T) {
	t.Parallel()

	coplayer := platformtest.NewCoplayer()
	coplayer.RespondEnroll(false)

	_, err := wired(newEnroll(newKeys("enroll"), NewCycleInfo())).
		Invoke(t.Context(), statemachine.CommittedPostWait, newRecorderExec(coplayer))
	require.ErrorIs(t, err, ErrTransactionRequired)
}

func TestPlayWithoutCompletion(t *testing.T) {
	t.Parallel()

	_, err := wired(newPlay(nil)).
		Invoke(t.Context(), statemachine.CommittedPostWait, newRecorderExec(platformtest.NewCoplayer()))
	require.ErrorIs(t, err, statemachine.ErrEventNotRecorded)
}
