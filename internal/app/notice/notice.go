// Package notice provides the notice center for broadcasting user-facing
// messages to the view.
package notice

import "time"

// Severity classifies how a notice should be presented.
type Severity int

const (
	SeverityBlocking  Severity = iota // Replaces the view and disables the transport
	SeverityNotice                    // Non-blocking, shown until superseded
	SeverityTransient                 // Non-blocking, may disappear on its own
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityBlocking:
		return "blocking"
	case SeverityNotice:
		return "notice"
	case SeverityTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Well-known notice codes, matching the error taxonomy.
const (
	CodePermissionDenied   = "permission_denied"
	CodeEnumerationFailure = "enumeration_failure"
	CodeLoadFailure        = "load_failure"
	CodeCommandFailure     = "command_failure"
)

// Notice is a single user-facing message.
type Notice struct {
	Severity   Severity
	Code       string // Taxonomy code, e.g. "load_failure"
	Message    string
	Time       time.Time
	SequenceNo uint64
}
