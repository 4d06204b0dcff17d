// Package engine provides the playback engine boundary: loading a track
// locator into a live session and controlling it asynchronously.
package engine

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrClosed            = errors.New("engine is closed")
	ErrNoSession         = errors.New("session is not active")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Status is a snapshot of a session's playback state, delivered to the
// subscriber at an engine-chosen cadence. Consumers must treat the cadence
// as opaque.
type Status struct {
	Loaded       bool          // Decoding succeeded and the session is playable
	Position     time.Duration // Current playback position
	Duration     time.Duration // Total track duration, zero while unknown
	IsPlaying    bool          // Audio is actively being produced
	JustFinished bool          // The track reached its natural end (reported once)
	Err          error         // Terminal decoding error for this session, nil otherwise
}

// StatusFunc receives status updates for a subscribed session.
type StatusFunc func(Status)

// Session is the opaque handle for one loaded track instance. At most one
// session is live per engine at any time.
type Session interface {
	// ID returns the unique session ID.
	ID() string
	// Locator returns the locator the session was loaded from.
	Locator() string
}

// Engine is the playback engine contract. Commands addressed to a session
// that has been superseded fail with ErrNoSession; callers racing with
// supersession are expected to tolerate that.
type Engine interface {
	// Load decodes the locator into a new session, replacing any live one.
	// With autoplay, playback starts immediately; otherwise the session
	// starts paused.
	Load(locator string, autoplay bool) (Session, error)
	// Play resumes playback of the session.
	Play(s Session) error
	// Pause pauses playback of the session.
	Pause(s Session) error
	// SeekTo moves the playback position without changing the play/pause
	// state. Seeking while paused must not start playback.
	SeekTo(s Session, pos time.Duration) error
	// PlayFrom moves the playback position and resumes playback.
	PlayFrom(s Session, pos time.Duration) error
	// Unload releases the session. It returns only after the session can no
	// longer emit status events. Unloading a superseded session is a no-op.
	Unload(s Session) error
	// Subscribe attaches the status callback and starts status delivery.
	Subscribe(s Session, fn StatusFunc) error
	// Close releases the live session, if any, and shuts the engine down.
	Close() error
}
