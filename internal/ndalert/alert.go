// Package ndalert decodes and encodes the ND alert message bus value.
//
// The runway awareness plugin publishes its navigation display alerts as a
// single int dataref (sim/multiplayer/position/plane19_taxi_light_on). The
// value is split into bit fields:
//
//	bits  0 - 5  (6 bits): message type
//	bits  6 - 7  (2 bits): color code (0 green, 1 amber)
//	bits  8 - 13 (6 bits): runway ID, 0 = taxiway, 37 = multiple runways
//	bits 14 - 15 (2 bits): runway suffix, 1 = R, 2 = L, 3 = C
//	bits 16 - 23 (8 bits): runway length in hundreds of ft/m, 0 = omit
//
// Bits 8 through 23 are only used by the APP and ON messages.
package ndalert

import (
	"errors"
	"fmt"
)

// ErrUndecodable is returned at API boundaries that report a failed decode as an error.
var ErrUndecodable = errors.New("undecodable value")

// MsgType is the 6-bit message type field.
type MsgType uint8

const (
	Flaps       MsgType = 1
	TooHigh     MsgType = 2
	TooFast     MsgType = 3
	Unstable    MsgType = 4
	Taxiway     MsgType = 5
	ShortRunway MsgType = 6
	AltmSetting MsgType = 7
	Approaching MsgType = 8 // 'APP XX' or 'APP XX ZZ'
	OnRunway    MsgType = 9 // 'ON XX' or 'ON XX ZZ'
	LongLanding MsgType = 10
	DeepLanding MsgType = 11
)

// Valid reports whether t is one of the known message types.
func (t MsgType) Valid() bool {
	return t >= Flaps && t <= DeepLanding
}

// HasRunway reports whether the message carries the runway fields.
func (t MsgType) HasRunway() bool {
	return t == Approaching || t == OnRunway
}

// Color is the 2-bit display color field. Values above Amber are not
// defined by the bus but are passed through as-is.
type Color uint8

const (
	Green Color = 0
	Amber Color = 1
)

func (c Color) String() string {
	switch c {
	case Green:
		return "GREEN"
	case Amber:
		return "AMBER"
	default:
		return fmt.Sprintf("COLOR(%d)", uint8(c))
	}
}

// Alert is a decoded ND message.
type Alert struct {
	Raw   uint32  `json:"raw"`
	Type  MsgType `json:"msg_type"`
	Text  string  `json:"text"`
	Color Color   `json:"color"`
}

// ColorName returns the display name used by the sample table: GREEN for
// code 0, AMBER for everything else.
func (a Alert) ColorName() string {
	if a.Color == Green {
		return "GREEN"
	}
	return "AMBER"
}

// Level is the severity the publishing side attaches to an alert.
type Level int

const (
	Routine    Level = 0
	NonRoutine Level = 1
	Caution    Level = 2
)

func (l Level) String() string {
	switch l {
	case Routine:
		return "routine"
	case NonRoutine:
		return "non-routine"
	case Caution:
		return "caution"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts the level names returned by Level.String and the
// bare numbers 0-2.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "routine", "0":
		return Routine, nil
	case "non-routine", "nonroutine", "1":
		return NonRoutine, nil
	case "caution", "2":
		return Caution, nil
	}
	return 0, fmt.Errorf("unknown alert level %q", s)
}
