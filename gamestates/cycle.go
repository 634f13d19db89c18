package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"go.uber.org/atomic"
)

// CycleInfoProvider is the provider name prefix of the game cycle information
// published to the presentation; the coplayer id is appended.
const CycleInfoProvider = "GameCycleInfo"

// CycleRecord is the critical data describing the game cycle in progress.
type CycleRecord struct {
	ID           string `cbor:"1,keyasint"`
	Denomination int64  `cbor:"2,keyasint"`
	BetAmount    int64  `cbor:"3,keyasint"`
}

type pendingOutcome struct {
	Outcome platform.Outcome `cbor:"1,keyasint"`
	Last    bool             `cbor:"2,keyasint"`
}

// keys are the critical data keys of one game machine.
type keys struct {
	cycle   string
	outcome string
}

func newKeys(machine string) keys {
	return keys{
		cycle:   criticaldata.Key("game", machine, "cycle"),
		outcome: criticaldata.Key("game", machine, "outcome"),
	}
}

// CycleInfo publishes the id of the running game cycle. It is safe for
// concurrent use by the presentation.
type CycleInfo struct {
	cycleID *atomic.String
}

// NewCycleInfo returns an empty CycleInfo.
func NewCycleInfo() *CycleInfo {
	return &CycleInfo{cycleID: atomic.NewString("")}
}

// CycleID returns the id of the running game cycle, empty between cycles.
func (c *CycleInfo) CycleID() string {
	return c.cycleID.Load()
}

func (c *CycleInfo) set(id string) {
	c.cycleID.Store(id)
}

// logContext tags the logs made through ctx with the running game cycle.
func (c *CycleInfo) logContext(ctx context.Context) context.Context {
	if id := c.CycleID(); id != "" {
		return logger.WithCycle(ctx, id)
	}

	return ctx
}

// ProviderName is the service name of the cycle info of coplayer.
func ProviderName(coplayer int) string {
	return fmt.Sprintf("%s/%d", CycleInfoProvider, coplayer)
}

func loadCycle(txn criticaldata.Txn, k keys) (CycleRecord, bool, error) {
	rec, ok, err := criticaldata.Load[CycleRecord](txn, k.cycle)
	if err != nil {
		return CycleRecord{}, false, fmt.Errorf("load game cycle: %w", err)
	}

	return rec, ok, nil
}

func clearCycle(txn criticaldata.Txn, k keys) error {
	for _, key := range []string{k.cycle, k.outcome} {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("clear game cycle: %w", err)
		}
	}

	return nil
}
