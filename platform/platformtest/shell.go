package platformtest

import (
	"context"
	"slices"
	"sync"

	"github.com/amp-labs/logicstates/platform"
)

// Shell fakes the shell library, chooser, bank and show demo services.
// Started themes are assigned to the lowest free coplayer.
type Shell struct {
	calls

	mu         sync.Mutex
	max        int
	selectable []platform.Theme
	running    []platform.Cotheme
	startup    []platform.ThemeSelection

	RunningChanged platform.Broadcaster[[]platform.Cotheme]
}

// NewShell creates a shell fake hosting at most maxCoplayers themes.
func NewShell(maxCoplayers int, selectable ...platform.Theme) *Shell {
	return &Shell{max: maxCoplayers, selectable: selectable}
}

// Libs returns the platform view of this fake.
func (s *Shell) Libs(services platform.ServiceController, presentation *Presentation) *platform.ShellLibs {
	libs := &platform.ShellLibs{
		Shell:    s,
		Chooser:  s,
		Bank:     s,
		Demo:     s,
		Services: services,
	}

	if presentation != nil {
		libs.Presentation = presentation
	}

	return libs
}

// SetStartupThemes configures the cold start themes.
func (s *Shell) SetStartupThemes(selections ...platform.ThemeSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startup = selections
}

// SetRunning replaces the running set without raising an event.
func (s *Shell) SetRunning(running ...platform.Cotheme) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = running
}

// ChangeRunning replaces the running set and raises RunningCothemesChanged.
func (s *Shell) ChangeRunning(running ...platform.Cotheme) {
	s.SetRunning(running...)
	s.RunningChanged.Publish(slices.Clone(running))
}

func (s *Shell) MaxNumCoplayers() int {
	return s.max
}

func (s *Shell) SelectableThemes() []platform.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.selectable)
}

func (s *Shell) RunningCothemes() []platform.Cotheme {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.running)
}

func (s *Shell) StartupThemes() []platform.ThemeSelection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.startup)
}

func (s *Shell) StartNewTheme(_ context.Context, selection platform.ThemeSelection) (bool, error) {
	s.record("StartNewTheme", selection.ThemeID)

	ok, err := s.outcome("StartNewTheme")
	if !ok {
		return ok, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coplayer := s.freeCoplayer()
	if coplayer < 0 {
		return false, nil
	}

	s.running = append(s.running, platform.Cotheme{
		Coplayer:     coplayer,
		ThemeID:      selection.ThemeID,
		Denomination: selection.Denomination,
	})

	return true, nil
}

func (s *Shell) freeCoplayer() int {
	for id := range s.max {
		if !slices.ContainsFunc(s.running, func(c platform.Cotheme) bool { return c.Coplayer == id }) {
			return id
		}
	}

	return -1
}

func (s *Shell) SwitchCoplayerTheme(_ context.Context, coplayer int, selection platform.ThemeSelection) (bool, error) {
	s.record("SwitchCoplayerTheme", coplayer, selection.ThemeID)

	ok, err := s.outcome("SwitchCoplayerTheme")
	if !ok {
		return ok, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.running {
		if s.running[i].Coplayer == coplayer {
			s.running[i].ThemeID = selection.ThemeID
			s.running[i].Denomination = selection.Denomination

			return true, nil
		}
	}

	return false, nil
}

func (s *Shell) ShutDownCoplayer(_ context.Context, coplayer int) (bool, error) {
	s.record("ShutDownCoplayer", coplayer)

	ok, err := s.outcome("ShutDownCoplayer")
	if !ok {
		return ok, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.running)
	s.running = slices.DeleteFunc(s.running, func(c platform.Cotheme) bool { return c.Coplayer == coplayer })

	return len(s.running) < before, nil
}

//nolint:ireturn
func (s *Shell) RunningCothemesChanged() platform.EventSource[[]platform.Cotheme] {
	return &s.RunningChanged
}

func (s *Shell) RequestChooser(_ context.Context, coplayer int) error {
	s.record("RequestChooser", coplayer)

	_, err := s.outcome("RequestChooser")

	return err
}

func (s *Shell) RequestCashout(context.Context) error {
	s.record("RequestCashout")

	_, err := s.outcome("RequestCashout")

	return err
}

func (s *Shell) AddCredits(_ context.Context, amount, _ int64) error {
	s.record("AddCredits", amount)

	_, err := s.outcome("AddCredits")

	return err
}

var (
	_ platform.ShellLib        = (*Shell)(nil)
	_ platform.ChooserServices = (*Shell)(nil)
	_ platform.BankPlay        = (*Shell)(nil)
	_ platform.ShowDemo        = (*Shell)(nil)
)
