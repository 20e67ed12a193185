// Package safego runs background work (audit mirror delivery, side servers) in
// goroutines that cannot take the process down.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go launches fn in a new goroutine under the given task name. A panic inside fn
// is recovered and logged with its stack.
func Go(task string, fn func()) {
	go func() {
		defer recoverTask(task)
		fn()
	}()
}

// recoverTask logs a recovered panic for task. It must be deferred directly.
func recoverTask(task string) {
	if r := recover(); r != nil {
		slog.Error("recovered panic in background goroutine",
			"task", task, "panic", r, "stack", string(debug.Stack()))
	}
}
