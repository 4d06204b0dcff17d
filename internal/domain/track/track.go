// Package track provides the Track domain entity.
package track

import "time"

// Track represents a single playable audio track from the local catalog.
// Metadata comes from file tags where available; Duration may be zero until
// the playback engine decodes the file and reports it.
type Track struct {
	ID       string        // Stable catalog ID
	Title    string        // Track title (filename stem when untagged)
	Artist   string        // Artist name (may be empty)
	Album    string        // Album name (may be empty)
	Locator  string        // Opaque locator resolved by the playback engine (file path)
	Duration time.Duration // Known duration, zero when not yet determined
}

// DisplayName returns the human-readable name for list rendering.
func (t *Track) DisplayName() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// HasDuration reports whether a usable duration is known for the track.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}
