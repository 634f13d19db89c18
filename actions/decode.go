package actions

import (
	"errors"
	"fmt"

	"github.com/amp-labs/logicstates/assert"
	"github.com/fxamacker/cbor/v2"
)

// ErrPayloadMismatch indicates a recognized action whose payload has the wrong type.
var ErrPayloadMismatch = errors.New("action payload type mismatch")

// IdleAction is an action the game Idle state reacts to.
type IdleAction interface {
	Param
	idleAction()
}

func (CommitStartParam) idleAction() {}

// ShellIdleAction is an action the ShellIdle state reacts to.
type ShellIdleAction interface {
	Param
	shellIdleAction()
}

func (StartNewThemeParam) shellIdleAction()       {}
func (SwitchCoplayerThemeParam) shellIdleAction() {}
func (ShutDownCoplayerParam) shellIdleAction()    {}
func (RequestChooserParam) shellIdleAction()      {}
func (RequestCashoutParam) shellIdleAction()      {}
func (AddCreditsParam) shellIdleAction()          {}

// DecodeIdle resolves an Idle action request. An unrecognized name returns
// ok=false and no error; a recognized name with a payload of another type
// returns ErrPayloadMismatch.
//
//nolint:ireturn
func DecodeIdle(name string, payload any) (action IdleAction, ok bool, err error) {
	switch name {
	case CommitStart:
		return decode[CommitStartParam, IdleAction](name, payload)
	default:
		return nil, false, nil
	}
}

// DecodeShellIdle resolves a ShellIdle action request, with the same rules
// as DecodeIdle.
//
//nolint:ireturn
func DecodeShellIdle(name string, payload any) (action ShellIdleAction, ok bool, err error) {
	switch name {
	case StartNewTheme:
		return decode[StartNewThemeParam, ShellIdleAction](name, payload)
	case SwitchCoplayerTheme:
		return decode[SwitchCoplayerThemeParam, ShellIdleAction](name, payload)
	case ShutDownCoplayer:
		return decode[ShutDownCoplayerParam, ShellIdleAction](name, payload)
	case RequestChooser:
		return decode[RequestChooserParam, ShellIdleAction](name, payload)
	case RequestCashout:
		return decode[RequestCashoutParam, ShellIdleAction](name, payload)
	case AddCredits:
		return decode[AddCreditsParam, ShellIdleAction](name, payload)
	default:
		return nil, false, nil
	}
}

// decode accepts the payload by value or by non-nil pointer and returns a
// clone, so the state never shares memory with the presentation layer.
func decode[T interface{ DeepClone() Param }, A any](name string, payload any) (A, bool, error) {
	var zero A

	if ptr, isPtr := payload.(*T); isPtr && ptr != nil {
		payload = *ptr
	}

	param, err := assert.Type[T](payload)
	if err != nil {
		return zero, true, fmt.Errorf("%w: %s: %w", ErrPayloadMismatch, name, err)
	}

	action, err := assert.Type[A](param.DeepClone())
	if err != nil {
		return zero, true, fmt.Errorf("%w: %s: %w", ErrPayloadMismatch, name, err)
	}

	return action, true, nil
}

// Marshal encodes a payload for transport between presentation and logic.
func Marshal(p Param) ([]byte, error) {
	data, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.ActionName(), err)
	}

	return data, nil
}

// Unmarshal decodes the payload of the named action. Unknown names return
// ok=false and no error.
//
//nolint:ireturn
func Unmarshal(name string, data []byte) (p Param, ok bool, err error) {
	switch name {
	case CommitStart:
		return unmarshal[CommitStartParam](name, data)
	case StartNewTheme:
		return unmarshal[StartNewThemeParam](name, data)
	case SwitchCoplayerTheme:
		return unmarshal[SwitchCoplayerThemeParam](name, data)
	case ShutDownCoplayer:
		return unmarshal[ShutDownCoplayerParam](name, data)
	case RequestChooser:
		return unmarshal[RequestChooserParam](name, data)
	case RequestCashout:
		return unmarshal[RequestCashoutParam](name, data)
	case AddCredits:
		return unmarshal[AddCreditsParam](name, data)
	default:
		return nil, false, nil
	}
}

func unmarshal[T Param](name string, data []byte) (Param, bool, error) {
	var p T

	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", name, err)
	}

	return p, true, nil
}
