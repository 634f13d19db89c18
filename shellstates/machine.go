package shellstates

import (
	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

// DefaultMachineName names a shell machine built without Options.Name.
const DefaultMachineName = "shell"

// Options customizes a shell machine.
type Options struct {
	// Name is the machine name. It scopes the machine's critical data.
	Name string
	// Providers receive the selectable and running themes. New ones are
	// created when nil.
	Providers *Providers
}

// RunningKey is the critical data key of the running themes last loaded by
// the shell machine called machine.
func RunningKey(machine string) string {
	return criticaldata.Key("shell", machine, "running")
}

// NewMachine builds the shell machine. Its providers are published through
// the shell's ServiceController while the machine is initialized.
func NewMachine(opts Options) (*Machine, error) {
	if opts.Name == "" {
		opts.Name = DefaultMachineName
	}

	if opts.Providers == nil {
		opts.Providers = NewProviders()
	}

	key := RunningKey(opts.Name)
	m := statemachine.NewMachine[*platform.ShellLibs, Exec](opts.Name)

	idle := newShellIdle(key)
	loading := newThemeLoading(key, opts.Providers)

	var errs lserrors.Collection

	for _, s := range []*State{idle, loading} {
		_, err := m.AddState(s)
		errs.Add(err)
	}

	errs.Add(idle.Wire(LabelLoading, loading))
	errs.Add(loading.Wire(LabelComplete, idle))
	errs.Add(m.SetInitialState(ShellIdleState))

	for _, hook := range opts.Providers.hooks() {
		errs.Add(m.AddHook(hook))
	}

	if err := errs.GetError(); err != nil {
		return nil, err
	}

	return m, nil
}
