// Package logging provides structured logging for rally runs.
//
// It wraps Go's log/slog with a JSON handler and adds persistent context
// attributes so every line can be traced back to the session and worker
// that produced it:
//
//	logger, err := logging.NewLogger(stateDir, "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	workerLog := logger.WithSession(sessionID).WithWorker("Parallel-1")
//	workerLog.Info("vote submitted", "tier", "SuperAccelerated", "behind", 23)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"vote submitted","session_id":"...","worker_id":"Parallel-1","tier":"SuperAccelerated","behind":23}
//
// Long runs cast thousands of votes, so file output goes through a
// [RotatingWriter] when rotation is configured (see [NewLoggerWithRotation]).
// The level can be changed on a live logger with [Logger.SetLevel]; child
// loggers share the parent's level.
//
// All types in this package are safe for concurrent use. Use [NopLogger] in
// tests.
package logging
