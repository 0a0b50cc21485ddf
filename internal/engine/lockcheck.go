package engine

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// LockCheckTimeout is how long a lock may be waited on before go-deadlock
// reports it while lock checks are enabled.
const LockCheckTimeout = 2 * time.Minute

func init() {
	ConfigureLockChecks(false, nil)
}

// ConfigureLockChecks sets the process-wide go-deadlock options used by the
// engine, stores and event bus. With checks disabled the mutexes behave like
// sync mutexes. With checks enabled lock-order and wait-time violations are
// logged with a full goroutine dump; the process is never terminated.
//
// Call it once at startup, before any engine is in use.
func ConfigureLockChecks(enabled bool, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	deadlock.Opts.Disable = !enabled
	deadlock.Opts.DisableLockOrderDetection = !enabled
	deadlock.Opts.DeadlockTimeout = LockCheckTimeout
	deadlock.Opts.OnPotentialDeadlock = func() {
		buf := make([]byte, 1<<16)
		n := runtime.Stack(buf, true)
		logger.Error("potential deadlock detected", slog.String("stacks", string(buf[:n])))
	}
}
