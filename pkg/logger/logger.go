// Package logger wires up structured logging for the handshake engine and
// its CLI demo. Setup is carried over from the teacher verbatim; Severity
// and Log add the mapping spec.md §6's log sink severities
// (Status | Response | Error | DebugWarning) need onto slog levels.
package logger

import (
	"log/slog"
	"os"
)

// Setup initializes the logger. Text output for console readability.
func Setup() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// Severity is the log sink's severity taxonomy (spec.md §6).
type Severity int

const (
	Status Severity = iota
	Response
	Error
	DebugWarning
)

// Log emits msg at the slog level corresponding to sev.
func Log(log *slog.Logger, sev Severity, msg string, args ...any) {
	switch sev {
	case Status, Response:
		log.Info(msg, args...)
	case Error:
		log.Error(msg, args...)
	case DebugWarning:
		log.Debug(msg, args...)
	}
}
