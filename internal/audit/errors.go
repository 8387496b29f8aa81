package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig aborts a run before any network call: a malformed
	// reference date, a missing channel or marker, or a broken tier table.
	ErrInvalidConfig = errors.New("invalid audit config")

	// ErrEmptyOrMalformedHistory means the history response had no message
	// collection. Callers treat it as a successful run with nothing to report.
	ErrEmptyOrMalformedHistory = errors.New("history response has no messages")

	// ErrTransport wraps a failed history fetch. Without history no partial
	// report is possible, so the run ends without notifying.
	ErrTransport = errors.New("history fetch failed")
)

// LinkResolutionError is the per-message failure carried by a ResolvedLink.
// It never escapes a run.
type LinkResolutionError struct {
	MessageID string
	Err       error
}

func (e *LinkResolutionError) Error() string {
	return fmt.Sprintf("resolving permalink for %s: %v", e.MessageID, e.Err)
}

func (e *LinkResolutionError) Unwrap() error {
	return e.Err
}
