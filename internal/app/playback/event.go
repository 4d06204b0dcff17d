package playback

import "github.com/osa030/solobox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // A different track became current (or none)
	EventStateChanged                     // Play/pause state changed
	EventPositionChanged                  // Position, duration or seek overlay changed
	EventTrackFailed                      // The current track's session hit a terminal error
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventTrackFailed:
		return "track_failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event delivered to the view.
type Event struct {
	Type   EventType
	Track  *track.Track // Current track (nil when no track)
	Status Status       // Transport snapshot taken when the event was emitted
}
