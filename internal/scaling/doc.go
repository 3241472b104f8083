// Package scaling decides when parallel vote workers start and stop.
//
// The primary worker always runs. Up to maxThreads-1 parallel workers are
// added as the target falls further behind: parallel worker k is started
// once the consecutive-behind count reaches [Threshold](k) = 20 + 10(k-1)
// and asked to stop when the count falls back below it, unless
// force-parallel mode keeps it alive until shutdown.
//
// The core types are:
//
//   - [Policy]: the threshold rules and limits
//   - [SlotState]: lifecycle of one parallel worker slot
//   - [Decision]: the output of policy evaluation for a slot
//
// # Usage
//
//	policy := scaling.NewPolicy(
//	    scaling.WithMaxThreads(8),
//	    scaling.WithForceParallel(false),
//	)
//
//	for _, d := range policy.Evaluate(behind, slots) {
//	    log.Printf("Scaling: %s slot=%d reason=%s", d.Action, d.Slot, d.Reason)
//	}
//
// # Thread Safety
//
// Policy is immutable and safe for concurrent use. Slot states belong to the
// caller, which evaluates and applies decisions under its own lock.
package scaling
