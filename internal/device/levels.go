package device

// Multipliers derive the power tiers from the current max level.
type Multipliers struct {
	MaxPlus float64
	Normal  float64
	Low     float64
}

// Levels tracks the per-channel output levels.
//
// MaxA/MaxB is the user-tuned max. It never exceeds the hard ceiling and
// never drops below the floor (MinA/MinB) set by locking. The remaining
// tiers are recomputed on every change.
type Levels struct {
	HardMaxA int `json:"hard_max_a"`
	HardMaxB int `json:"hard_max_b"`

	MaxA int `json:"max_a"`
	MaxB int `json:"max_b"`

	MinA int `json:"min_a"`
	MinB int `json:"min_b"`

	MaxPlusA int `json:"max_plus_a"`
	MaxPlusB int `json:"max_plus_b"`
	NormA    int `json:"norm_a"`
	NormB    int `json:"norm_b"`
	LowA     int `json:"low_a"`
	LowB     int `json:"low_b"`

	mult Multipliers
}

// NewLevels starts both channels at their hard ceiling with no floor.
func NewLevels(hardMaxA, hardMaxB int, mult Multipliers) Levels {
	l := Levels{
		HardMaxA: hardMaxA,
		HardMaxB: hardMaxB,
		MaxA:     hardMaxA,
		MaxB:     hardMaxB,
		mult:     mult,
	}
	l.derive()
	return l
}

// Set requests new max levels. Each request is first raised to the floor;
// a channel whose result would exceed its hard ceiling keeps its old max.
// Returns true if either channel changed.
func (l *Levels) Set(maxA, maxB int) bool {
	prevA, prevB := l.MaxA, l.MaxB

	maxA = max(l.MinA, maxA)
	maxB = max(l.MinB, maxB)
	if maxA <= l.HardMaxA {
		l.MaxA = maxA
	}
	if maxB <= l.HardMaxB {
		l.MaxB = maxB
	}
	l.derive()

	return prevA != l.MaxA || prevB != l.MaxB
}

// Adjust moves both max levels by the given deltas. See Set.
func (l *Levels) Adjust(deltaA, deltaB int) bool {
	return l.Set(l.MaxA+deltaA, l.MaxB+deltaB)
}

// SetMinimum snapshots the current max levels as the floor, or clears the
// floor when zero is true.
func (l *Levels) SetMinimum(zero bool) {
	if zero {
		l.MinA, l.MinB = 0, 0
		return
	}
	l.MinA, l.MinB = l.MaxA, l.MaxB
}

func (l *Levels) derive() {
	l.MaxPlusA = min(int(float64(l.MaxA)*l.mult.MaxPlus), l.HardMaxA)
	l.MaxPlusB = min(int(float64(l.MaxB)*l.mult.MaxPlus), l.HardMaxB)
	l.NormA = int(float64(l.MaxA) * l.mult.Normal)
	l.NormB = int(float64(l.MaxB) * l.mult.Normal)
	l.LowA = int(float64(l.MaxA) * l.mult.Low)
	l.LowB = int(float64(l.MaxB) * l.mult.Low)
}
