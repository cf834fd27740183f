package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the full stack trace.
// Call it in a defer statement:
//
//	defer observability.RecoverPanic(logger, "billing run")
//
// After logging, the panic is NOT re-raised. The surrounding goroutine
// returns normally, which may leave in-progress state behind. Use carefully.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, and then runs
// the callback. Use it when a panicking goroutine must still release a
// resource, e.g. close a channel other goroutines are waiting on:
//
//	defer observability.RecoverPanicWithCallback(logger, "enforcer worker", func() {
//	    close(resultCh)
//	})
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}

// MustRecover converts a recovered panic value to an error. Pass the
// result of recover() from a deferred closure:
//
//	defer func() {
//	    err = observability.MustRecover(recover())
//	}()
//
// Returns nil when no panic occurred. The stack trace is not included in
// the error; use RecoverPanic when the trace should be logged.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
