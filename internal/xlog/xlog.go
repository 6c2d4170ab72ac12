// Package xlog provides the process-wide structured logger, a thin
// wrapper over charmbracelet/log so every component gets a consistently
// named sub-logger instead of reaching for the standard library's log
// package directly.
package xlog

import (
	"os"

	"github.com/charmbracelet/log"
)

var root = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
})

// For returns a sub-logger tagged with the given component name, e.g.
// xlog.For("writer").Info("flushed", "channels", 3).
func For(component string) *log.Logger {
	return root.With("component", component)
}

// SetLevel adjusts the process-wide minimum log level.
func SetLevel(level log.Level) {
	root.SetLevel(level)
}
