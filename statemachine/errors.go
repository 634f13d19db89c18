package statemachine

import (
	"errors"
	"fmt"
)

// Configuration errors. These indicate a defect in how a machine was built and
// are never retried.
var (
	// ErrNilState indicates that a nil state was registered or wired.
	ErrNilState = errors.New("state is nil")
	// ErrStateNameRequired indicates that a state has an empty name.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that a state with the same name is already registered.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrStateNotFound indicates a lookup of an unregistered state.
	ErrStateNotFound = errors.New("no such state")
	// ErrTransitionUnset indicates that a transition was used before being wired.
	ErrTransitionUnset = errors.New("transition target is not set")
	// ErrUnknownTransition indicates use of a label the state never declared.
	ErrUnknownTransition = errors.New("transition label not declared")
	// ErrDuplicateTransition indicates a label declared twice, or an empty label.
	ErrDuplicateTransition = errors.New("transition label empty or declared twice")
	// ErrTransitionRewired indicates an attempt to wire a label twice.
	ErrTransitionRewired = errors.New("transition already wired")
	// ErrMachineSealed indicates a structural change after Initialize.
	ErrMachineSealed = errors.New("state machine is sealed")
	// ErrInitialStateRequired indicates that a machine has no initial state.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrInvalidStep indicates a step value outside the four defined steps.
	ErrInvalidStep = errors.New("invalid step")
	// ErrProviderNameRequired indicates a provider hook without a name.
	ErrProviderNameRequired = errors.New("provider name is required")
	// ErrDuplicateProvider indicates two provider hooks with the same name.
	ErrDuplicateProvider = errors.New("duplicate provider name")
	// ErrMachineRequired indicates an Engine built without a machine.
	ErrMachineRequired = errors.New("state machine is required")
	// ErrStoreRequired indicates an Engine built without a critical data store.
	ErrStoreRequired = errors.New("critical data store is required")
	// ErrExecFactoryRequired indicates an Engine built without an Exec constructor.
	ErrExecFactoryRequired = errors.New("exec constructor is required")
)

// Protocol violations. These signal that the driver/state contract was broken.
var (
	// ErrNextStateUnset indicates ExitState without a preceding SetNextState.
	ErrNextStateUnset = errors.New("next state not set before ExitState")
	// ErrEventNotRecorded indicates a post-wait step ran before its event arrived.
	ErrEventNotRecorded = errors.New("awaited event was not recorded")
	// ErrRepeatOutsideWait indicates RepeatWait returned from a step other than CommittedWait.
	ErrRepeatOutsideWait = errors.New("RepeatWait is only valid from CommittedWait")
	// ErrUnexpectedAction indicates an action payload the state cannot handle.
	ErrUnexpectedAction = errors.New("unexpected presentation action")
	// ErrInvalidStepControl indicates a step returned an undefined StepControl.
	ErrInvalidStepControl = errors.New("invalid step control")
)

// ConfigurationError wraps a configuration sentinel with what was misused.
type ConfigurationError struct {
	Op      string // operation that detected the problem, e.g. "AddState"
	Subject string // state, transition ("Idle.committed") or provider name
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("statemachine configuration: %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("statemachine configuration: %s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// LogicStateError is the distinguished fatal error for protocol violations.
// The host is expected to halt rather than continue in an inconsistent state.
type LogicStateError struct {
	State string
	Step  Step
	Err   error
}

func (e *LogicStateError) Error() string {
	return fmt.Sprintf("logic state %s at %s: %v", e.State, e.Step, e.Err)
}

func (e *LogicStateError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err with operation and subject context.
func NewConfigurationError(op, subject string, err error) error {
	if err == nil {
		return nil
	}

	return &ConfigurationError{Op: op, Subject: subject, Err: err}
}

// NewLogicStateError wraps err with state and step context.
func NewLogicStateError(state string, step Step, err error) error {
	if err == nil {
		return nil
	}

	return &LogicStateError{State: state, Step: step, Err: err}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError

	return errors.As(err, &cfgErr)
}

// IsLogicStateError reports whether err is or wraps a LogicStateError.
func IsLogicStateError(err error) bool {
	var logicErr *LogicStateError

	return errors.As(err, &logicErr)
}
