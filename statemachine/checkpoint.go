package statemachine

import (
	"fmt"

	"github.com/amp-labs/logicstates/criticaldata"
)

// Checkpoint is the recovery position of an Engine. It is written inside
// every weighted step transaction, so it always matches the critical data
// committed by that step.
type Checkpoint struct {
	Machine    string `cbor:"1,keyasint"`
	State      string `cbor:"2,keyasint"`
	Step       Step   `cbor:"3,keyasint"`
	VisitID    string `cbor:"4,keyasint"`
	NextState  string `cbor:"5,keyasint,omitempty"`
	Presenting bool   `cbor:"6,keyasint,omitempty"`
}

// CheckpointKey is the critical data key holding the checkpoint of machine.
func CheckpointKey(machine string) string {
	return criticaldata.Key("statemachine", machine, "checkpoint")
}

// LoadCheckpoint reads the checkpoint of machine through txn.
func LoadCheckpoint(txn criticaldata.Txn, machine string) (Checkpoint, bool, error) {
	cp, ok, err := criticaldata.Load[Checkpoint](txn, CheckpointKey(machine))
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load checkpoint of %s: %w", machine, err)
	}

	return cp, ok, nil
}

func saveCheckpoint(txn criticaldata.Txn, cp Checkpoint) error {
	if err := criticaldata.Save(txn, CheckpointKey(cp.Machine), cp); err != nil {
		return fmt.Errorf("save checkpoint of %s: %w", cp.Machine, err)
	}

	return nil
}
