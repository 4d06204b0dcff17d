// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/solobox/internal/domain/track"
)

// Playlist is an ordered, read-only view over the tracks the catalog listed.
// Index arithmetic wraps: advancing past the last track lands on the first,
// and stepping back from the first lands on the last.
type Playlist struct {
	tracks []track.Track
}

// New creates a playlist over the given tracks. The slice is copied so later
// mutation by the caller cannot affect the playlist.
func New(tracks []track.Track) *Playlist {
	copied := make([]track.Track, len(tracks))
	copy(copied, tracks)
	return &Playlist{tracks: copied}
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// IsEmpty returns true if the playlist holds no tracks.
func (p *Playlist) IsEmpty() bool {
	return len(p.tracks) == 0
}

// Get returns the track at index i and whether the index is valid.
func (p *Playlist) Get(i int) (track.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return track.Track{}, false
	}
	return p.tracks[i], true
}

// Tracks returns a copy of all tracks in order.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// NextIndex returns the index following i, wrapping to 0 past the last track.
// Returns -1 for an empty playlist.
func (p *Playlist) NextIndex(i int) int {
	n := len(p.tracks)
	if n == 0 {
		return -1
	}
	return ((i + 1) % n + n) % n
}

// PrevIndex returns the index preceding i, wrapping to the last track before 0.
// Returns -1 for an empty playlist.
func (p *Playlist) PrevIndex(i int) int {
	n := len(p.tracks)
	if n == 0 {
		return -1
	}
	return ((i-1)%n + n) % n
}

// TotalDuration returns the summed duration of all tracks with known lengths.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.tracks {
		if t.HasDuration() {
			total += t.Duration
		}
	}
	return total
}
