package command

import (
	"fmt"
	"strconv"
)

// Kind names one entry of the device command vocabulary.
type Kind string

// Command vocabulary.
const (
	KindReserve             Kind = "reserve"
	KindRelease             Kind = "release"
	KindOff                 Kind = "off"
	KindOn                  Kind = "on"
	KindOnLow               Kind = "on_low"
	KindOnNorm              Kind = "on_norm"
	KindOnMax               Kind = "on_max"
	KindOnMaxPlus           Kind = "on_max_plus"
	KindOnMaxA              Kind = "on_max_a"
	KindOnMaxB              Kind = "on_max_b"
	KindSetMode             Kind = "set_mode"
	KindSetMA               Kind = "set_ma"
	KindSetLevelA           Kind = "set_level_a"
	KindSetLevelB           Kind = "set_level_b"
	KindSetMinimum          Kind = "set_minimum"
	KindAdjust              Kind = "adjust"
	KindSetLevelsFromDevice Kind = "set_levels_from_device"
)

var kinds = map[Kind]struct{}{
	KindReserve: {}, KindRelease: {}, KindOff: {}, KindOn: {},
	KindOnLow: {}, KindOnNorm: {}, KindOnMax: {}, KindOnMaxPlus: {},
	KindOnMaxA: {}, KindOnMaxB: {}, KindSetMode: {}, KindSetMA: {},
	KindSetLevelA: {}, KindSetLevelB: {}, KindSetMinimum: {}, KindAdjust: {},
	KindSetLevelsFromDevice: {},
}

// Valid reports whether k is part of the vocabulary.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// IsPowerTier reports whether k selects one of the output power tiers.
func (k Kind) IsPowerTier() bool {
	switch k {
	case KindOn, KindOnLow, KindOnNorm, KindOnMax, KindOnMaxPlus:
		return true
	}
	return false
}

// ParseKind converts a configured name to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Command is one immutable instruction for the device.
//
// Only the fields relevant to Kind are meaningful:
//   - Value: set_ma, set_level_a, set_level_b
//   - Mode: set_mode
//   - Zero: set_minimum (true resets the floor to zero)
//   - DeltaA, DeltaB, Activate: adjust
type Command struct {
	Kind     Kind   `json:"kind"`
	Value    int    `json:"value,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Zero     bool   `json:"zero,omitempty"`
	DeltaA   int    `json:"delta_a,omitempty"`
	DeltaB   int    `json:"delta_b,omitempty"`
	Activate bool   `json:"activate,omitempty"`
}

// Simple returns a command that carries no arguments.
func Simple(k Kind) Command { return Command{Kind: k} }

// Off returns the safety command that drives both channels to zero.
func Off() Command { return Command{Kind: KindOff} }

// SetMode selects a device mode by name.
func SetMode(mode string) Command { return Command{Kind: KindSetMode, Mode: mode} }

// SetMA sets the multi-adjust value.
func SetMA(v int) Command { return Command{Kind: KindSetMA, Value: v} }

// SetLevelA sets channel A directly.
func SetLevelA(v int) Command { return Command{Kind: KindSetLevelA, Value: v} }

// SetLevelB sets channel B directly.
func SetLevelB(v int) Command { return Command{Kind: KindSetLevelB, Value: v} }

// SetMinimum snapshots the current max levels as the floor, or resets the
// floor to zero when zero is true.
func SetMinimum(zero bool) Command { return Command{Kind: KindSetMinimum, Zero: zero} }

// Adjust moves the max levels by the given deltas. When activate is true the
// new max is written to the device for every channel with a non-zero delta.
func Adjust(deltaA, deltaB int, activate bool) Command {
	return Command{Kind: KindAdjust, DeltaA: deltaA, DeltaB: deltaB, Activate: activate}
}

// String renders the command for logs.
func (c Command) String() string {
	switch c.Kind {
	case KindSetMode:
		return string(c.Kind) + "(" + c.Mode + ")"
	case KindSetMA, KindSetLevelA, KindSetLevelB:
		return string(c.Kind) + "(" + strconv.Itoa(c.Value) + ")"
	case KindSetMinimum:
		return string(c.Kind) + "(zero=" + strconv.FormatBool(c.Zero) + ")"
	case KindAdjust:
		return fmt.Sprintf("%s(%+d,%+d,activate=%t)", c.Kind, c.DeltaA, c.DeltaB, c.Activate)
	default:
		return string(c.Kind)
	}
}
