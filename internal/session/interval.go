package session

// Rand is the random source used by the session. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// teaseThreshold is the shortest interval (seconds) eligible for teasing.
const teaseThreshold = 10

// Secondary change points are kept this far (seconds) from the interval edges.
const (
	secondaryMinStart = 60
	secondaryEndGap   = 20
	secondaryMinLeft  = 120
)

// Interval is the result of one randomised interval draw.
type Interval struct {
	// Seconds is the interval length after any tease.
	Seconds float64
	// Terms are the individual draws that were summed.
	Terms []int
	// Teased is true if the sum was divided by ten.
	Teased bool
}

// CalculateTime draws a randomised interval.
//
// A uniform integer in [minBound, maxBound] is drawn. While a fresh draw in
// [0, 100) is below addPercent another term is drawn and added. If the sum
// exceeds ten seconds it is divided by ten with probability teasePercent.
//
// Parameters:
//   - r: Random source
//   - minBound, maxBound: Inclusive bounds of each term (seconds)
//   - addPercent: Chance (0-99) of each additional term
//   - teasePercent: Chance (0-100) of shortening the result
//
// Returns:
//   - Interval: The drawn interval and its terms
func CalculateTime(r Rand, minBound, maxBound, addPercent, teasePercent int) Interval {
	first := uniform(r, minBound, maxBound)
	terms := []int{first}
	total := first
	for r.IntN(100) < addPercent {
		more := uniform(r, minBound, maxBound)
		terms = append(terms, more)
		total += more
	}

	iv := Interval{Seconds: float64(total), Terms: terms}
	if total > teaseThreshold && r.IntN(100) < teasePercent {
		iv.Seconds /= 10
		iv.Teased = true
	}
	return iv
}

// SecondaryOffsets picks the points (seconds from interval start) at which
// an On interval of secs seconds changes mode and power. Points are at least
// a minute in, at least 20s before the end, and picking stops once less than
// two minutes remain after the last point.
func SecondaryOffsets(r Rand, secs int) []int {
	var offsets []int
	t := 0
	for secs-t > secondaryMinLeft {
		t = uniform(r, max(secondaryMinStart, t+1), secs-secondaryEndGap)
		offsets = append(offsets, t)
	}
	return offsets
}

// Shuffle permutes s in place (Fisher-Yates).
func Shuffle[T any](r Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// uniform returns a uniform integer in [lo, hi]. hi below lo yields lo.
func uniform(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}
