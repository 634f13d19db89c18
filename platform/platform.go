// Package platform describes the cabinet platform SDK as the state machines
// consume it: the per-coplayer game cycle and betting libraries, the shell
// library and its services, and the events they raise.
//
// Every call that can be refused by the platform returns a boolean; a refusal
// is a normal business outcome. Errors are reserved for failures of the
// platform itself and are fatal to the calling state machine.
package platform

import (
	"context"
	"io"

	"github.com/amp-labs/logicstates/statemachine"
)

// CycleState is the platform's authoritative game cycle state.
type CycleState int

const (
	CycleIdle CycleState = iota
	CycleCommitted
	CycleEnrollPending
	CycleEnrollComplete
	CyclePlaying
	CycleFinalizePending
	CycleFinalized
	CycleAbortPending
	CycleAborted
)

func (s CycleState) String() string {
	switch s {
	case CycleIdle:
		return "Idle"
	case CycleCommitted:
		return "Committed"
	case CycleEnrollPending:
		return "EnrollPending"
	case CycleEnrollComplete:
		return "EnrollComplete"
	case CyclePlaying:
		return "Playing"
	case CycleFinalizePending:
		return "FinalizePending"
	case CycleFinalized:
		return "Finalized"
	case CycleAbortPending:
		return "AbortPending"
	case CycleAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// EventSource delivers platform events to subscribers. Handlers run on the
// platform's dispatch goroutine and must not block. Closing the returned
// io.Closer unsubscribes.
type EventSource[T any] interface {
	Subscribe(handler func(T)) io.Closer
}

// EnrollResponse is the platform's answer to EnrollGameCycle.
type EnrollResponse struct {
	Succeeded bool
}

// Award is one component of an outcome.
type Award struct {
	Name   string
	Amount int64
}

// Outcome is the result of evaluating a play.
type Outcome struct {
	Awards []Award
}

// Total returns the sum of all awards.
func (o Outcome) Total() int64 {
	var total int64

	for _, a := range o.Awards {
		total += a.Amount
	}

	return total
}

// OutcomeAdjusted is raised once the platform processed an outcome adjustment.
type OutcomeAdjusted struct {
	Accepted bool
}

// FinalizeComplete is raised when a finalized outcome has been settled.
type FinalizeComplete struct{}

// AbortComplete is raised when an accepted abort has been settled.
type AbortComplete struct{}

// SessionParamsReset is raised when the player session parameters (for
// example the denomination) were reset by the platform.
type SessionParamsReset struct {
	Denomination int64
}

// Bet is the wager committed for a game cycle.
type Bet struct {
	Denomination int64
	Amount       int64
}

// GameCyclePlay drives the game cycle of one coplayer.
type GameCyclePlay interface {
	GameCycleState() CycleState
	CommitGameCycle(ctx context.Context) (bool, error)
	UncommitGameCycle(ctx context.Context) error
	EnrollGameCycle(ctx context.Context) (bool, error)
	// EnrollResult returns the enroll response if it already arrived.
	EnrollResult() (EnrollResponse, bool)
	AdjustOutcome(ctx context.Context, outcome Outcome) error
	AdjustLastOutcome(ctx context.Context, outcome Outcome) error
	// OutcomeAdjustmentResult returns the response to the last outcome
	// adjustment if it already arrived.
	OutcomeAdjustmentResult() (OutcomeAdjusted, bool)
	FinalizeOutcome(ctx context.Context) error
	AbortGameCycle(ctx context.Context) (bool, error)
	EndGameCycle(ctx context.Context) error

	EnrollResponseReady() EventSource[EnrollResponse]
	OutcomeAdjustmentReady() EventSource[OutcomeAdjusted]
	FinalizeOutcomeComplete() EventSource[FinalizeComplete]
	AbortCompleted() EventSource[AbortComplete]
}

// GameCycleBetting places and commits bets for one coplayer.
type GameCycleBetting interface {
	PlaceStartingBet(ctx context.Context, bet Bet) (bool, error)
	CommitBet(ctx context.Context) (bool, error)
	UncommitBet(ctx context.Context) error
}

// PlayerSession reports changes of the player session.
type PlayerSession interface {
	ParamsReset() EventSource[SessionParamsReset]
}

// ServiceController publishes data providers to the presentation layer.
type ServiceController interface {
	AddProvider(name string, provider any) error
	RemoveProvider(name string) error
}

// CoplayerLib is everything one coplayer's game states use of the platform.
type CoplayerLib struct {
	ID           int
	Play         GameCyclePlay
	Betting      GameCycleBetting
	Session      PlayerSession
	Services     ServiceController
	Presentation statemachine.Presentation
}

// Theme is a loadable game.
type Theme struct {
	ID            string
	Name          string
	Denominations []int64
}

// Cotheme is a theme running on a coplayer.
type Cotheme struct {
	Coplayer     int
	ThemeID      string
	Denomination int64
}

// ThemeSelection names a theme and denomination to start.
type ThemeSelection struct {
	ThemeID      string
	Denomination int64
}

// ShellLib manages the themes running on the cabinet.
type ShellLib interface {
	MaxNumCoplayers() int
	SelectableThemes() []Theme
	RunningCothemes() []Cotheme
	// StartupThemes lists the themes configured to run after a cold start.
	StartupThemes() []ThemeSelection
	StartNewTheme(ctx context.Context, selection ThemeSelection) (bool, error)
	SwitchCoplayerTheme(ctx context.Context, coplayer int, selection ThemeSelection) (bool, error)
	ShutDownCoplayer(ctx context.Context, coplayer int) (bool, error)

	RunningCothemesChanged() EventSource[[]Cotheme]
}

// ChooserServices controls the theme chooser.
type ChooserServices interface {
	RequestChooser(ctx context.Context, coplayer int) error
}

// BankPlay controls the player's credit meter.
type BankPlay interface {
	RequestCashout(ctx context.Context) error
}

// ShowDemo offers show (demo) mode functions.
type ShowDemo interface {
	AddCredits(ctx context.Context, amount, denomination int64) error
}

// ShellLibs is everything the shell states use of the platform.
type ShellLibs struct {
	Shell        ShellLib
	Chooser      ChooserServices
	Bank         BankPlay
	Demo         ShowDemo
	Services     ServiceController
	Presentation statemachine.Presentation
}
