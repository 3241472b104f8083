package timing

import "time"

const (
	// BackoffFactor is applied to the multiplier on every observation where
	// the lead exceeds the threshold.
	BackoffFactor = 1.5
	// MaxDelay caps any scheduled delay, however large the multiplier grows.
	MaxDelay = 300 * time.Second
	// DefaultLeadThreshold is the lead in percentage points above which
	// votes slow down.
	DefaultLeadThreshold = 15.0
)

// NextMultiplier applies the backoff rule to one successful observation.
// The multiplier compounds while the lead stays above threshold and resets
// to 1.0 as soon as it does not, or when there is no lead to speak of.
func NextMultiplier(current float64, lead float64, hasLead bool, threshold float64) float64 {
	if hasLead && lead > threshold {
		if current < 1 {
			current = 1
		}
		return current * BackoffFactor
	}
	return 1.0
}

// ApplyMultiplier scales a tier delay and clamps the result to MaxDelay.
func ApplyMultiplier(base time.Duration, multiplier float64) time.Duration {
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(base) * multiplier
	if d >= float64(MaxDelay) {
		return MaxDelay
	}
	return time.Duration(d)
}

// BackoffApplied reports whether the multiplier lengthens delays.
func BackoffApplied(multiplier float64) bool {
	return multiplier > 1.0
}
