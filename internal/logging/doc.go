// Package logging provides the diagnostic logger for fahrpc.
//
// Events are written as plain text so they can be read and grepped after a
// crash without tooling. Each event is one summary line, optionally followed
// by an exception block:
//
//	[2026-01-15 14:30:05] [ERROR   ] monitor.Monitor.poll():88 - [MAIN LOOP] FAH connection lost: Connection refused
//	[EXCEPTION] ConnectionError: Connection refused
//	[STACK TRACE]:
//	  File "/src/fahrpc/internal/app/app.go", line 141, in app.(*App).loop
//	    if err := a.tick(ctx); err != nil {
//	  File "/src/fahrpc/internal/app/monitor.go", line 88, in app.(*Monitor).poll
//	    return errors.NewConnectionError("Connection refused", err)
//
// # Features
//
//   - Five ordered levels (DEBUG, INFO, WARNING, ERROR, CRITICAL)
//   - Call-site origin captured automatically as module.function():line
//   - Exception blocks built from error values, using the stack recorded by
//     internal/errors when available
//   - Numbered size rotation (file.1 newest .. file.N oldest), decided
//     before each write
//   - Optional lumberjack backend with timestamped backups
//   - Console mirror for an interactive terminal
//   - Stderr capture with noise suppression
//   - Log aggregation, filtering, following and export
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. A [Sink] is the
// single serialization point for its file: rotation and the write that
// triggered it happen under one lock, and every write is synced before
// [Sink.Emit] returns.
//
// # Basic Usage
//
// The composition root builds one [Logger] and passes it down:
//
//	log := logging.New()
//	log.Info("before init: buffered")
//
//	sink := logging.NewRotatingSink(path, logging.RotationNumbered, logging.DefaultRotationConfig())
//	if err := log.Init(logging.LevelDebug, sink); err != nil {
//	    return err
//	}
//	defer log.Close()
//
//	startup := log.WithPhase(logging.PhaseStartup)
//	startup.Info("configuration loaded")
//
//	if err := probe(); err != nil {
//	    log.WithPhase(logging.PhaseMainLoop).Exception(err, "FAH connection lost: "+err.Error())
//	}
//
// # Failure Handling
//
// Logging calls never return errors and never panic. A failed write is
// copied to the sink's fallback writer (stderr by default). A failed
// rotation is abandoned and the active file keeps growing until a later
// rotation succeeds.
//
// # Testing
//
// For testing, use [Nop] to discard all log output, or attach a [Sink] over
// a file in t.TempDir() and read it back with [ReadFile].
package logging
