package shellstates

import (
	"cmp"
	"context"
	"slices"
	"sort"

	"facette.io/natsort"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
	"go.uber.org/atomic"
)

// Provider names under which the shell publishes its data.
const (
	SelectableThemesProviderName = "SelectableThemes"
	RunningCothemesProviderName  = "RunningCothemes"
)

// SelectableThemesProvider publishes the themes a player can start, in
// natural order of their names. It is safe for concurrent use.
type SelectableThemesProvider struct {
	themes atomic.Pointer[[]platform.Theme]
}

// Themes returns the last refreshed themes.
func (p *SelectableThemesProvider) Themes() []platform.Theme {
	if themes := p.themes.Load(); themes != nil {
		return slices.Clone(*themes)
	}

	return nil
}

func (p *SelectableThemesProvider) refresh(shell platform.ShellLib) {
	themes := slices.Clone(shell.SelectableThemes())
	sort.SliceStable(themes, func(i, j int) bool {
		return natsort.Compare(themes[i].Name, themes[j].Name)
	})

	p.themes.Store(&themes)
}

// RunningCothemesProvider publishes the themes running on each coplayer,
// ordered by coplayer. It is safe for concurrent use.
type RunningCothemesProvider struct {
	running atomic.Pointer[[]platform.Cotheme]
}

// Cothemes returns the last refreshed running themes.
func (p *RunningCothemesProvider) Cothemes() []platform.Cotheme {
	if running := p.running.Load(); running != nil {
		return slices.Clone(*running)
	}

	return nil
}

func (p *RunningCothemesProvider) refresh(shell platform.ShellLib) []platform.Cotheme {
	running := sortedCothemes(shell.RunningCothemes())
	p.running.Store(&running)

	return running
}

func sortedCothemes(running []platform.Cotheme) []platform.Cotheme {
	running = slices.Clone(running)
	slices.SortFunc(running, func(a, b platform.Cotheme) int {
		return cmp.Compare(a.Coplayer, b.Coplayer)
	})

	return running
}

// Providers are the data providers owned by one shell machine.
type Providers struct {
	Selectable *SelectableThemesProvider
	Running    *RunningCothemesProvider
}

// NewProviders returns empty providers.
func NewProviders() *Providers {
	return &Providers{
		Selectable: &SelectableThemesProvider{},
		Running:    &RunningCothemesProvider{},
	}
}

func (p *Providers) refresh(shell platform.ShellLib) []platform.Cotheme {
	p.Selectable.refresh(shell)

	return p.Running.refresh(shell)
}

func (p *Providers) hooks() []statemachine.Hook[*platform.ShellLibs] {
	return []statemachine.Hook[*platform.ShellLibs]{
		providerHook(SelectableThemesProviderName, p.Selectable, func(libs *platform.ShellLibs) {
			p.Selectable.refresh(libs.Shell)
		}),
		providerHook(RunningCothemesProviderName, p.Running, func(libs *platform.ShellLibs) {
			p.Running.refresh(libs.Shell)
		}),
	}
}

func providerHook(name string, provider any, refresh func(*platform.ShellLibs)) statemachine.Hook[*platform.ShellLibs] {
	return statemachine.Hook[*platform.ShellLibs]{
		Name: name,
		Initialize: func(_ context.Context, libs *platform.ShellLibs) error {
			refresh(libs)

			return libs.Services.AddProvider(name, provider)
		},
		CleanUp: func(_ context.Context, libs *platform.ShellLibs) error {
			return libs.Services.RemoveProvider(name)
		},
	}
}
