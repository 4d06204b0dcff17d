// Package viewmodel projects transport state into the values the view
// renders. Projection is pure: no side effects, recomputed on every change.
package viewmodel

import (
	"fmt"
	"time"

	"github.com/osa030/solobox/internal/app/playback"
	"github.com/osa030/solobox/internal/domain/playlist"
)

// View is the render-ready projection of the transport state.
type View struct {
	TrackCount   int
	CurrentIndex int    // -1 when no track
	TrackName    string // Display name of the current track, empty when none

	Position   time.Duration // Displayed position (seek target while dragging)
	Duration   time.Duration
	Progress   float64 // Position/Duration in [0,1], 0 while duration unknown
	Clock      string  // "m:ss" of the displayed position
	ClockTotal string  // "m:ss" of the duration ("0:00" while unknown)

	PlayPauseLabel   string // "Pause" while playing, "Play" otherwise
	TransportEnabled bool   // False when the playlist is empty
	Seeking          bool
}

// Project computes the view for a transport snapshot.
func Project(st playback.Status, pl *playlist.Playlist) View {
	v := View{
		TrackCount:       pl.Len(),
		CurrentIndex:     st.Index,
		Duration:         st.Duration,
		TransportEnabled: !pl.IsEmpty(),
		Seeking:          st.Seeking,
		PlayPauseLabel:   "Play",
	}

	if trk, ok := pl.Get(st.Index); ok {
		v.TrackName = trk.DisplayName()
	}

	// While a drag is active the dragged target owns the displayed position.
	v.Position = st.Position
	if st.Seeking {
		v.Position = st.SeekTarget
	}

	if st.Playing {
		v.PlayPauseLabel = "Pause"
	}

	if st.Duration > 0 {
		v.Progress = float64(v.Position) / float64(st.Duration)
		if v.Progress < 0 {
			v.Progress = 0
		}
		if v.Progress > 1 {
			v.Progress = 1
		}
	}

	v.Clock = FormatClock(v.Position)
	v.ClockTotal = FormatClock(st.Duration)
	return v
}

// FormatClock renders a duration as "m:ss": seconds zero-padded to two
// digits, no leading zero on minutes, unknown (non-positive) as "0:00".
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
