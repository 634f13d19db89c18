package platformtest

import (
	"context"
	"sync"

	"github.com/amp-labs/logicstates/platform"
)

// Coplayer fakes the game cycle, betting and session libraries of one coplayer.
//
// By default requests stay pending until the test raises the response with
// RespondEnroll, RespondAdjustment, CompleteFinalize or CompleteAbort. With
// AutoRespond set, responses are raised synchronously inside the request.
type Coplayer struct {
	calls

	AutoRespond bool

	mu           sync.Mutex
	state        platform.CycleState
	enrollResult *platform.EnrollResponse
	adjustResult *platform.OutcomeAdjusted
	bet          platform.Bet
	outcomes     []platform.Outcome

	Enroll    platform.Broadcaster[platform.EnrollResponse]
	Adjusted  platform.Broadcaster[platform.OutcomeAdjusted]
	Finalized platform.Broadcaster[platform.FinalizeComplete]
	Aborted   platform.Broadcaster[platform.AbortComplete]
	Reset     platform.Broadcaster[platform.SessionParamsReset]
}

// NewCoplayer creates a fake in the Idle cycle state.
func NewCoplayer() *Coplayer {
	return &Coplayer{}
}

// Lib returns the platform view of this fake for coplayer id.
func (c *Coplayer) Lib(id int, services platform.ServiceController, presentation *Presentation) *platform.CoplayerLib {
	lib := &platform.CoplayerLib{
		ID:       id,
		Play:     c,
		Betting:  c,
		Session:  c,
		Services: services,
	}

	if presentation != nil {
		lib.Presentation = presentation
	}

	return lib
}

// SetState overrides the authoritative cycle state.
func (c *Coplayer) SetState(s platform.CycleState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = s
}

// Bet returns the last placed bet.
func (c *Coplayer) Bet() platform.Bet {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bet
}

// Outcomes returns the adjusted outcomes in order.
func (c *Coplayer) Outcomes() []platform.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]platform.Outcome(nil), c.outcomes...)
}

func (c *Coplayer) GameCycleState() platform.CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Coplayer) CommitGameCycle(context.Context) (bool, error) {
	c.record("CommitGameCycle")

	ok, err := c.outcome("CommitGameCycle")
	if ok {
		c.SetState(platform.CycleCommitted)
	}

	return ok, err
}

func (c *Coplayer) UncommitGameCycle(context.Context) error {
	c.record("UncommitGameCycle")
	c.SetState(platform.CycleIdle)

	_, err := c.outcome("UncommitGameCycle")

	return err
}

func (c *Coplayer) EnrollGameCycle(context.Context) (bool, error) {
	c.record("EnrollGameCycle")

	ok, err := c.outcome("EnrollGameCycle")
	if !ok {
		return ok, err
	}

	c.mu.Lock()
	c.state = platform.CycleEnrollPending
	c.enrollResult = nil
	c.mu.Unlock()

	if c.AutoRespond {
		c.RespondEnroll(true)
	}

	return true, nil
}

// RespondEnroll raises the enroll response.
func (c *Coplayer) RespondEnroll(succeeded bool) {
	resp := platform.EnrollResponse{Succeeded: succeeded}

	c.mu.Lock()
	c.enrollResult = &resp
	c.state = platform.CycleEnrollComplete
	c.mu.Unlock()

	c.Enroll.Publish(resp)
}

func (c *Coplayer) EnrollResult() (platform.EnrollResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enrollResult == nil {
		return platform.EnrollResponse{}, false
	}

	return *c.enrollResult, true
}

func (c *Coplayer) AdjustOutcome(_ context.Context, outcome platform.Outcome) error {
	return c.adjust("AdjustOutcome", outcome)
}

func (c *Coplayer) AdjustLastOutcome(_ context.Context, outcome platform.Outcome) error {
	return c.adjust("AdjustLastOutcome", outcome)
}

func (c *Coplayer) adjust(name string, outcome platform.Outcome) error {
	c.record(name)

	if _, err := c.outcome(name); err != nil {
		return err
	}

	c.mu.Lock()
	c.outcomes = append(c.outcomes, outcome)
	c.adjustResult = nil
	c.state = platform.CyclePlaying
	c.mu.Unlock()

	if c.AutoRespond {
		c.RespondAdjustment(true)
	}

	return nil
}

// RespondAdjustment raises the outcome adjustment response.
func (c *Coplayer) RespondAdjustment(accepted bool) {
	resp := platform.OutcomeAdjusted{Accepted: accepted}

	c.mu.Lock()
	c.adjustResult = &resp
	c.mu.Unlock()

	c.Adjusted.Publish(resp)
}

func (c *Coplayer) OutcomeAdjustmentResult() (platform.OutcomeAdjusted, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adjustResult == nil {
		return platform.OutcomeAdjusted{}, false
	}

	return *c.adjustResult, true
}

func (c *Coplayer) FinalizeOutcome(context.Context) error {
	c.record("FinalizeOutcome")

	if _, err := c.outcome("FinalizeOutcome"); err != nil {
		return err
	}

	c.SetState(platform.CycleFinalizePending)

	if c.AutoRespond {
		c.CompleteFinalize()
	}

	return nil
}

// CompleteFinalize settles a pending finalize and raises its event.
func (c *Coplayer) CompleteFinalize() {
	c.SetState(platform.CycleFinalized)
	c.Finalized.Publish(platform.FinalizeComplete{})
}

func (c *Coplayer) AbortGameCycle(context.Context) (bool, error) {
	c.record("AbortGameCycle")

	ok, err := c.outcome("AbortGameCycle")
	if !ok {
		return ok, err
	}

	c.SetState(platform.CycleAbortPending)

	if c.AutoRespond {
		c.CompleteAbort()
	}

	return true, nil
}

// CompleteAbort settles a pending abort and raises its event.
func (c *Coplayer) CompleteAbort() {
	c.SetState(platform.CycleAborted)
	c.Aborted.Publish(platform.AbortComplete{})
}

func (c *Coplayer) EndGameCycle(context.Context) error {
	c.record("EndGameCycle")

	if _, err := c.outcome("EndGameCycle"); err != nil {
		return err
	}

	c.SetState(platform.CycleIdle)

	return nil
}

func (c *Coplayer) PlaceStartingBet(_ context.Context, bet platform.Bet) (bool, error) {
	c.record("PlaceStartingBet", bet.Amount)

	ok, err := c.outcome("PlaceStartingBet")
	if ok {
		c.mu.Lock()
		c.bet = bet
		c.mu.Unlock()
	}

	return ok, err
}

func (c *Coplayer) CommitBet(context.Context) (bool, error) {
	c.record("CommitBet")

	return c.outcome("CommitBet")
}

func (c *Coplayer) UncommitBet(context.Context) error {
	c.record("UncommitBet")

	_, err := c.outcome("UncommitBet")

	return err
}

//nolint:ireturn
func (c *Coplayer) EnrollResponseReady() platform.EventSource[platform.EnrollResponse] {
	return &c.Enroll
}

//nolint:ireturn
func (c *Coplayer) OutcomeAdjustmentReady() platform.EventSource[platform.OutcomeAdjusted] {
	return &c.Adjusted
}

//nolint:ireturn
func (c *Coplayer) FinalizeOutcomeComplete() platform.EventSource[platform.FinalizeComplete] {
	return &c.Finalized
}

//nolint:ireturn
func (c *Coplayer) AbortCompleted() platform.EventSource[platform.AbortComplete] {
	return &c.Aborted
}

//nolint:ireturn
func (c *Coplayer) ParamsReset() platform.EventSource[platform.SessionParamsReset] {
	return &c.Reset
}

var (
	_ platform.GameCyclePlay    = (*Coplayer)(nil)
	_ platform.GameCycleBetting = (*Coplayer)(nil)
	_ platform.PlayerSession    = (*Coplayer)(nil)
)
