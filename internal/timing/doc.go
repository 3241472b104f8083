// Package timing decides how long a worker waits between votes.
//
// A [Policy] maps the consecutive-behind count and the worker's [Role] to a
// [Tier] and draws a whole-second delay from that tier's range:
//
//	behind   tier                 delay (s)
//	0        Standard             53-67
//	1-4      InitialAccelerated   14-37
//	5-9      Accelerated          7-16
//	>=10     SuperAccelerated     3-10
//
// Parallel workers always use SuperAccelerated.
//
// On top of the tier delay, [NextMultiplier] implements lead backoff: every
// observation with a lead above the threshold multiplies the backoff factor
// by 1.5, anything else resets it to 1.0. [ApplyMultiplier] scales a delay by
// the factor and clamps it to [MaxDelay].
//
// Sleeps go through a [Clock] so tests and benchmarks can replace the wall
// clock.
package timing
