// Package actions defines the payloads the presentation layer attaches to
// action requests, and decodes them into one closed sum type per receiving
// state.
package actions

import (
	"maps"
	"slices"
)

// Action discriminants.
const (
	CommitStart         = "CommitStart"
	StartNewTheme       = "StartNewTheme"
	SwitchCoplayerTheme = "SwitchCoplayerTheme"
	ShutDownCoplayer    = "ShutDownCoplayer"
	RequestChooser      = "RequestChooser"
	RequestCashout      = "RequestCashout"
	AddCredits          = "AddCredits"
)

// Param is a payload of a presentation action request.
type Param interface {
	// ActionName is the discriminant of the action carrying this payload.
	ActionName() string
	// DeepClone returns an equal copy sharing no memory with the receiver.
	DeepClone() Param
}

// Wager is one bet placement of a CommitStart request.
type Wager struct {
	Name   string `cbor:"1,keyasint"`
	Amount int64  `cbor:"2,keyasint"`
}

// CommitStartParam starts a game cycle with the given bet.
type CommitStartParam struct {
	Denomination int64   `cbor:"1,keyasint"`
	BetAmount    int64   `cbor:"2,keyasint"`
	Wagers       []Wager `cbor:"3,keyasint,omitempty"`
}

func (p CommitStartParam) ActionName() string { return CommitStart }

func (p CommitStartParam) DeepClone() Param {
	p.Wagers = slices.Clone(p.Wagers)

	return p
}

// StartNewThemeParam launches a theme on a free coplayer.
type StartNewThemeParam struct {
	ThemeID      string            `cbor:"1,keyasint"`
	Denomination int64             `cbor:"2,keyasint"`
	Properties   map[string]string `cbor:"3,keyasint,omitempty"`
}

func (p StartNewThemeParam) ActionName() string { return StartNewTheme }

func (p StartNewThemeParam) DeepClone() Param {
	p.Properties = maps.Clone(p.Properties)

	return p
}

// SwitchCoplayerThemeParam replaces the theme running on a coplayer.
type SwitchCoplayerThemeParam struct {
	Coplayer     int    `cbor:"1,keyasint"`
	ThemeID      string `cbor:"2,keyasint"`
	Denomination int64  `cbor:"3,keyasint"`
}

func (p SwitchCoplayerThemeParam) ActionName() string { return SwitchCoplayerTheme }

func (p SwitchCoplayerThemeParam) DeepClone() Param { return p }

// ShutDownCoplayerParam stops a coplayer.
type ShutDownCoplayerParam struct {
	Coplayer int `cbor:"1,keyasint"`
}

func (p ShutDownCoplayerParam) ActionName() string { return ShutDownCoplayer }

func (p ShutDownCoplayerParam) DeepClone() Param { return p }

// RequestChooserParam opens the theme chooser.
type RequestChooserParam struct {
	Coplayer int `cbor:"1,keyasint"`
}

func (p RequestChooserParam) ActionName() string { return RequestChooser }

func (p RequestChooserParam) DeepClone() Param { return p }

// RequestCashoutParam asks the bank to pay out the credit meter.
type RequestCashoutParam struct {
	Reason string `cbor:"1,keyasint,omitempty"`
}

func (p RequestCashoutParam) ActionName() string { return RequestCashout }

func (p RequestCashoutParam) DeepClone() Param { return p }

// AddCreditsParam adds test credits in show (demo) mode.
type AddCreditsParam struct {
	Amount       int64 `cbor:"1,keyasint"`
	Denomination int64 `cbor:"2,keyasint"`
}

func (p AddCreditsParam) ActionName() string { return AddCredits }

func (p AddCreditsParam) DeepClone() Param { return p }
