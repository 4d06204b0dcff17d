// Package playback provides the playback controller: it reconciles user
// intent with the asynchronous playback engine and owns the canonical
// transport state.
package playback

import "time"

// State represents the transport state.
type State int

const (
	StateNoTrack State = iota // No track selected (no live session)
	StatePlaying              // Track selected and audible
	StatePaused               // Track selected and paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNoTrack:
		return "no_track"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the transport state, read by the view. Index is -1
// exactly when no session exists, which also implies Playing is false.
type Status struct {
	Index      int           // Index into the playlist, -1 when no track
	Playing    bool          // Engine-confirmed play state (optimistic right after select)
	Seeking    bool          // A seek drag is in progress
	SeekTarget time.Duration // Dragged target position, valid while Seeking
	Position   time.Duration // Engine-reported position
	Duration   time.Duration // Track duration, zero while unknown
}

// State derives the coarse transport state from the snapshot.
func (s Status) State() State {
	switch {
	case s.Index < 0:
		return StateNoTrack
	case s.Playing:
		return StatePlaying
	default:
		return StatePaused
	}
}
