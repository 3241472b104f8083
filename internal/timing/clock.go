package timing

import "time"

// Clock is the time source used for sleeps and timestamps.
type Clock interface {
	Now() time.Time
	// After waits for d to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// After returns time.After(d).
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// ScaledClock compresses time by Scale: with Scale 60 a one-minute delay
// elapses in one real second and Now advances sixty times faster than the
// wall clock. Benchmarks use it to replay hours of scheduling in seconds.
type ScaledClock struct {
	scale     float64
	startReal time.Time
}

// NewScaledClock returns a ScaledClock. A non-positive scale means 1.
func NewScaledClock(scale float64) *ScaledClock {
	if scale <= 0 {
		scale = 1
	}
	return &ScaledClock{scale: scale, startReal: time.Now()}
}

// Scale returns the compression factor.
func (c *ScaledClock) Scale() float64 { return c.scale }

// Now returns the scaled time, starting from the moment the clock was made.
func (c *ScaledClock) Now() time.Time {
	elapsed := time.Since(c.startReal)
	return c.startReal.Add(time.Duration(float64(elapsed) * c.scale))
}

// After waits for the real equivalent of d.
func (c *ScaledClock) After(d time.Duration) <-chan time.Time {
	return time.After(c.ToReal(d))
}

// ToReal converts a scaled duration to wall-clock time, never below 1ms.
func (c *ScaledClock) ToReal(d time.Duration) time.Duration {
	wall := time.Duration(float64(d) / c.scale)
	if wall < time.Millisecond {
		return time.Millisecond
	}
	return wall
}
