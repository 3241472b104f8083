// Package voter provides the [vote.Voter] implementations rally runs with.
//
// [Command] runs an external program per attempt, normally the browser
// automation script, and reads the poll it observed from its stdout.
// [Simulator] is an in-process poll used for dry runs and benchmarks.
// [Guard] wraps either one and turns timeouts, panics and arbitrary errors
// into transient vote failures.
package voter
