// Package logging builds the structured loggers used across the service.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New returns the base logger writing to stdout at the given level.
// Unknown levels fall back to info.
func New(level string) *log.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
}

// ForComponent derives a logger tagged with the component name.
func ForComponent(base *log.Logger, component string) *log.Logger {
	return base.With("component", component)
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
