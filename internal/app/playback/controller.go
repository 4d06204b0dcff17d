package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/solobox/internal/app/notice"
	"github.com/osa030/solobox/internal/domain/playlist"
	"github.com/osa030/solobox/internal/domain/track"
	"github.com/osa030/solobox/internal/infra/engine"
)

// Errors
var (
	ErrClosed          = errors.New("controller is closed")
	ErrIndexOutOfRange = errors.New("track index out of range")
)

const (
	eventBuffer  = 16
	statusBuffer = 64
)

// session is the live engine handle for the currently selected track,
// tagged with the generation it was created under.
type session struct {
	index    int
	gen      uint64
	handle   engine.Session
	trk      track.Track
	finished bool // The finish transition has already been taken
}

// Controller owns the transport state and reconciles it against the engine.
// All mutation happens inside its mutex; engine status callbacks are funneled
// through a single-consumer queue so a slow or superseded session can never
// corrupt current state.
type Controller struct {
	mu sync.Mutex

	playlist *playlist.Playlist
	engine   engine.Engine
	notices  *notice.Center

	// Current session and intent
	current    *session
	generation uint64
	playing    bool
	seeking    bool
	seekTarget time.Duration
	position   time.Duration
	duration   time.Duration

	// Channels
	events   chan Event
	statusCh chan statusUpdate

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// statusUpdate wraps an engine status event with the generation of the
// session it originated from.
type statusUpdate struct {
	gen    uint64
	status engine.Status
}

// NewController creates a new playback controller over the given playlist.
func NewController(pl *playlist.Playlist, eng engine.Engine, notices *notice.Center) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		playlist: pl,
		engine:   eng,
		notices:  notices,
		events:   make(chan Event, eventBuffer),
		statusCh: make(chan statusUpdate, statusBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.run()
	return c
}

// Events returns the event channel consumed by the view.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Status returns a snapshot of the transport state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// SelectTrack releases any current session and starts playback of the track
// at the given index. Re-selecting the current index restarts it.
func (c *Controller) SelectTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.selectTrackLocked(index)
}

// TogglePlayPause pauses a playing session or resumes a paused one. No-op
// when no session exists. The playing flag is not flipped optimistically;
// the next status event is authoritative.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return nil
	}

	var err error
	if c.playing {
		err = c.engine.Pause(c.current.handle)
	} else {
		err = c.engine.Play(c.current.handle)
	}
	if err != nil {
		return c.commandFailedLocked("play/pause", c.current.gen, err)
	}
	return nil
}

// Next advances to the following track, wrapping to the first past the last.
// No-op when the playlist is empty.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.playlist.IsEmpty() {
		return nil
	}
	return c.selectTrackLocked(c.playlist.NextIndex(c.indexLocked()))
}

// Previous steps back to the preceding track, wrapping to the last before the
// first. No-op when the playlist is empty.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.playlist.IsEmpty() {
		return nil
	}
	return c.selectTrackLocked(c.playlist.PrevIndex(c.indexLocked()))
}

// BeginSeek starts or continues a seek drag. The engine is not contacted;
// only the displayed position is overridden. Repeated calls update the
// target, last value wins.
func (c *Controller) BeginSeek(target time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.seeking = true
	c.seekTarget = c.clampLocked(target)
	c.emitLocked(EventPositionChanged)
}

// CommitSeek ends the seek drag and issues exactly one engine command: play
// from the target when playing, seek-in-place when paused. A commit with no
// session only clears the seeking flag.
func (c *Controller) CommitSeek(target time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.seeking = false
	if c.current == nil {
		c.emitLocked(EventPositionChanged)
		return nil
	}

	target = c.clampLocked(target)
	var err error
	if c.playing {
		err = c.engine.PlayFrom(c.current.handle, target)
	} else {
		err = c.engine.SeekTo(c.current.handle, target)
	}
	if err != nil {
		c.emitLocked(EventPositionChanged)
		return c.commandFailedLocked("seek", c.current.gen, err)
	}

	c.position = target
	c.emitLocked(EventPositionChanged)
	return nil
}

// Close disposes the controller: the current generation is invalidated
// synchronously and the active session's release is fired without awaiting.
// No state mutation happens after Close returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.generation++ // Any in-flight status event is now stale
	c.cancel()

	if c.current != nil {
		handle := c.current.handle
		c.current = nil
		go func() {
			if err := c.engine.Unload(handle); err != nil {
				zlog.Warn().Msgf("playback: release on close failed: %v", err)
			}
		}()
	}

	close(c.events)
	return nil
}

// run is the single consumer of engine status events.
func (c *Controller) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case u := <-c.statusCh:
			c.onStatus(u)
		}
	}
}

// pushStatus enqueues a status event from the engine callback. Never blocks:
// the engine's delivery goroutine must not be able to deadlock against a
// controller operation that is waiting on the engine.
func (c *Controller) pushStatus(gen uint64, st engine.Status) {
	select {
	case <-c.ctx.Done():
	case c.statusCh <- statusUpdate{gen: gen, status: st}:
	default:
		zlog.Warn().Msgf("playback: status queue full, dropping update for generation %d", gen)
	}
}

// onStatus is the single reconciliation point for engine-reported state.
func (c *Controller) onStatus(u statusUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	// Stale-event guard: events from a superseded session are discarded so a
	// lagging unload can never corrupt current state. This also suppresses
	// duplicate finish events, since handling a finish supersedes the session.
	if c.current == nil || u.gen != c.current.gen {
		zlog.Debug().Msgf("playback: discarding status from stale generation %d", u.gen)
		return
	}

	st := u.status

	if st.Err != nil {
		// Terminal decoding error for this session; the engine emits no
		// further useful status for it.
		zlog.Error().Msgf("playback: session error on track %d: %v", c.current.index, st.Err)
		c.notices.Publish(notice.SeverityNotice, notice.CodeLoadFailure, st.Err.Error())
		c.emitLocked(EventTrackFailed)
		return
	}

	// While a seek drag is active the dragged target owns the displayed
	// position; engine positions would fight the user's hand.
	if !c.seeking {
		c.position = st.Position
		if st.Duration > 0 {
			c.duration = st.Duration
		}
	}

	// The playing flag is always engine-authoritative, even mid-drag, so a
	// pause or resume is never masked by seeking.
	stateChanged := c.playing != st.IsPlaying
	c.playing = st.IsPlaying

	if st.JustFinished && !c.current.finished {
		c.current.finished = true
		// Sole autonomous transition: same as Next().
		next := c.playlist.NextIndex(c.current.index)
		if err := c.selectTrackLocked(next); err != nil {
			zlog.Error().Msgf("playback: auto-advance to track %d failed: %v", next, err)
		}
		return
	}

	if stateChanged {
		c.emitLocked(EventStateChanged)
	} else {
		c.emitLocked(EventPositionChanged)
	}
}

// selectTrackLocked implements track activation. Must be called with c.mu
// held. The previous session is fully released before the new load is issued,
// and the status subscription is installed only after the new session exists,
// so events are never attributed to the wrong track.
func (c *Controller) selectTrackLocked(index int) error {
	trk, ok := c.playlist.Get(index)
	if !ok {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
	}

	c.releaseLocked()

	c.generation++
	gen := c.generation

	handle, err := c.engine.Load(trk.Locator, true)
	if err != nil {
		zlog.Error().Msgf("playback: failed to load track %d (%s): %v", index, trk.DisplayName(), err)
		c.notices.Publish(notice.SeverityNotice, notice.CodeLoadFailure, trk.DisplayName()+": "+err.Error())
		c.resetLocked()
		c.emitLocked(EventTrackChanged)
		return errors.Wrap(err, "failed to load track")
	}

	c.current = &session{index: index, gen: gen, handle: handle, trk: trk}
	c.playing = true // Optimistic, corrected by the first status event
	c.seeking = false
	c.position = 0
	c.duration = trk.Duration // Zero when metadata is not yet known

	if err := c.engine.Subscribe(handle, func(st engine.Status) {
		c.pushStatus(gen, st)
	}); err != nil {
		zlog.Error().Msgf("playback: failed to subscribe to track %d: %v", index, err)
		c.notices.Publish(notice.SeverityNotice, notice.CodeLoadFailure, trk.DisplayName()+": "+err.Error())
		c.releaseLocked()
		c.resetLocked()
		c.emitLocked(EventTrackChanged)
		return errors.Wrap(err, "failed to subscribe to session status")
	}

	zlog.Info().Msgf("playback: selected track %d: %s (generation %d)", index, trk.DisplayName(), gen)
	c.emitLocked(EventTrackChanged)
	return nil
}

// releaseLocked unloads the current session, awaiting the engine's release so
// no two sessions can overlap. Must be called with c.mu held.
func (c *Controller) releaseLocked() {
	if c.current == nil {
		return
	}
	if err := c.engine.Unload(c.current.handle); err != nil {
		// The session may have been superseded inside the engine already.
		zlog.Warn().Msgf("playback: failed to unload session for track %d: %v", c.current.index, err)
	}
	c.current = nil
}

// resetLocked returns the transport to the no-track state. Must be called
// with c.mu held.
func (c *Controller) resetLocked() {
	c.current = nil
	c.playing = false
	c.seeking = false
	c.position = 0
	c.duration = 0
}

// commandFailedLocked applies the CommandFailure policy: a failure on a
// superseded generation is an expected race and only logged; on the active
// generation it is surfaced as a transient notice but transport state is left
// untouched (the next status event is authoritative). Must be called with
// c.mu held.
func (c *Controller) commandFailedLocked(op string, gen uint64, err error) error {
	if c.current == nil || gen != c.current.gen {
		zlog.Debug().Msgf("playback: %s on superseded session: %v", op, err)
		return nil
	}
	zlog.Warn().Msgf("playback: %s failed: %v", op, err)
	c.notices.Publish(notice.SeverityTransient, notice.CodeCommandFailure, op+": "+err.Error())
	return errors.Wrapf(err, "%s failed", op)
}

// indexLocked returns the current index or -1. Must be called with c.mu held.
func (c *Controller) indexLocked() int {
	if c.current == nil {
		return -1
	}
	return c.current.index
}

// clampLocked bounds a seek target to the known track length. Must be called
// with c.mu held.
func (c *Controller) clampLocked(target time.Duration) time.Duration {
	if target < 0 {
		return 0
	}
	if c.duration > 0 && target > c.duration {
		return c.duration
	}
	return target
}

// statusLocked builds the exported snapshot. Must be called with c.mu held.
func (c *Controller) statusLocked() Status {
	return Status{
		Index:      c.indexLocked(),
		Playing:    c.playing,
		Seeking:    c.seeking,
		SeekTarget: c.seekTarget,
		Position:   c.position,
		Duration:   c.duration,
	}
}

// emitLocked sends an event without blocking. Must be called with c.mu held.
func (c *Controller) emitLocked(t EventType) {
	e := Event{Type: t, Status: c.statusLocked()}
	if c.current != nil {
		trk := c.current.trk
		e.Track = &trk
	}
	select {
	case c.events <- e:
	case <-c.ctx.Done():
	default:
		// Channel full; the view reads Status() on every event anyway, so a
		// dropped intermediate event is harmless.
	}
}
