package gamestates

import (
	"context"

	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

// DefaultMachineName names a game machine built without Options.Name.
const DefaultMachineName = "game"

// Options customizes a game cycle machine.
type Options struct {
	// Name is the machine name. It scopes the machine's critical data and
	// must be unique per coplayer.
	Name string
	// Evaluate computes outcomes in Evaluation. Defaults to EvaluateNothing.
	Evaluate EvaluateFunc
	// PlayNext chooses how Play exits. Defaults to PlayMainComplete.
	PlayNext PlayNextFunc
	// Info receives the id of the running game cycle. A new one is created
	// when nil.
	Info *CycleInfo
}

// NewMachine builds the game cycle machine of one coplayer. Its CycleInfo is
// published through the coplayer's ServiceController while the machine is
// initialized.
func NewMachine(opts Options) (*Machine, error) {
	if opts.Name == "" {
		opts.Name = DefaultMachineName
	}

	if opts.Info == nil {
		opts.Info = NewCycleInfo()
	}

	k := newKeys(opts.Name)
	m := statemachine.NewMachine[*platform.CoplayerLib, Exec](opts.Name)

	var (
		idle       = newIdle(k, opts.Info)
		enroll     = newEnroll(k, opts.Info)
		evaluation = newEvaluation(k, opts.Info, opts.Evaluate)
		play       = newPlay(opts.PlayNext)
		finalize   = newFinalize()
		end        = newEndGameCycle(k, opts.Info)
		abort      = newAbort()
	)

	var errs lserrors.Collection

	for _, s := range []*State{idle, enroll, evaluation, play, finalize, end, abort} {
		_, err := m.AddState(s)
		errs.Add(err)
	}

	wire := func(from *State, label string, to *State) {
		errs.Add(from.Wire(label, to))
	}

	wire(idle, LabelCommitted, enroll)
	wire(enroll, LabelSuccess, evaluation)
	wire(enroll, LabelFailure, idle)
	wire(evaluation, LabelComplete, play)
	wire(play, LabelMainComplete, finalize)
	wire(play, LabelAbort, abort)
	wire(finalize, LabelComplete, end)
	wire(abort, LabelComplete, end)
	wire(abort, LabelRejected, play)
	wire(end, LabelComplete, idle)

	errs.Add(m.SetInitialState(IdleState))
	errs.Add(m.AddHook(cycleInfoHook(opts.Info)))

	if err := errs.GetError(); err != nil {
		return nil, err
	}

	return m, nil
}

func cycleInfoHook(info *CycleInfo) statemachine.Hook[*platform.CoplayerLib] {
	return statemachine.Hook[*platform.CoplayerLib]{
		Name: CycleInfoProvider,
		Initialize: func(_ context.Context, lib *platform.CoplayerLib) error {
			return lib.Services.AddProvider(ProviderName(lib.ID), info)
		},
		CleanUp: func(_ context.Context, lib *platform.CoplayerLib) error {
			return lib.Services.RemoveProvider(ProviderName(lib.ID))
		},
	}
}
