// package shared defines helpers used across the application: logging,
// identifiers, configuration and database access.
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance writing to the specified [io.Writer],
// with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// GenerateID generates a new v4 [uuid.UUID] as a string.
//
// Used for session identifiers.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState generates an opaque state token for OAuth CSRF protection.
func GenerateState() string {
	return uuid.New().String()
}
