// Package event provides a pub-sub event bus that decouples the worker pool
// from everything that watches it.
//
// Workers publish what happened; the live status view, the Prometheus
// collectors and the debug log subscribe. Neither side knows about the other.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Worker lifecycle:
//   - [WorkerStartedEvent]: a worker loop began
//   - [WorkerStoppedEvent]: a worker loop exited after scale down or shutdown
//
// Votes:
//   - [VoteCompletedEvent]: an attempt returned a poll snapshot
//   - [AttemptFailedEvent]: an attempt failed transiently
//
// Scheduling:
//   - [ScalingDecisionEvent]: the pool started or asked a worker to stop
//   - [BackoffChangedEvent]: the backoff multiplier moved
//   - [ConfigReloadedEvent]: reloadable settings changed on disk
//
// # Thread Safety
//
// The [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine, so they must be quick; a worker waits for them. A
// panicking handler is logged and does not stop delivery to the others.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeVoteCompleted, func(e event.Event) {
//	    v := e.(event.VoteCompletedEvent)
//	    log.Printf("%s rank %d", v.WorkerID, v.Rank)
//	})
//
//	bus.Publish(event.NewWorkerStartedEvent("Main", 0))
package event
