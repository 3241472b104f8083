// Package pool runs the vote workers.
//
// The primary worker ("Main") runs for the whole session. Parallel workers
// ("Parallel-1" ... "Parallel-N") are started and stopped by the scaling
// decisions the shared [position.State] commits whenever the behind count
// changes; the pool only carries them out.
//
// Each worker repeats one iteration: attempt a vote, fold the observed
// standings into the shared state, pick the next delay from the tier and
// backoff rules, count the outcome, append a record to the activity log,
// publish events and sleep. The sleep is interruptible; the attempt is not.
// A stopped worker finishes its in-flight attempt before it exits, and a
// panic inside an iteration is recovered and counted as a failed attempt.
package pool
