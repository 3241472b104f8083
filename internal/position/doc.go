// Package position tracks the target's standing across all workers.
//
// A [Tracker] turns a single poll snapshot into an [Observation]: whether
// the target is ahead, and by how much. [State] is the one structure all
// workers share. Each successful vote is folded into it with [State.Apply],
// which in a single critical section updates the consecutive-behind count,
// the lead, and the backoff multiplier, then evaluates and commits the
// scaling rules for the new count. Concurrent updates are last-write-wins.
package position
