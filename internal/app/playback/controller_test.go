package playback

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/solobox/internal/app/notice"
	"github.com/osa030/solobox/internal/domain/playlist"
	"github.com/osa030/solobox/internal/domain/track"
	"github.com/osa030/solobox/internal/infra/engine"
)

// fakeSession is a fake engine session handle.
type fakeSession struct {
	id      string
	locator string
}

func (s *fakeSession) ID() string      { return s.id }
func (s *fakeSession) Locator() string { return s.locator }

// fakeCommand records one engine call for order and argument assertions.
type fakeCommand struct {
	op      string // "load", "unload", "play", "pause", "seek_to", "play_from"
	locator string
	pos     time.Duration
}

// fakeEngine is an in-memory engine that records every command and lets tests
// fire status events on any session, including superseded ones.
type fakeEngine struct {
	mu          sync.Mutex
	commands    []fakeCommand
	active      *fakeSession
	subscribers map[*fakeSession]engine.StatusFunc
	loadErr     map[string]error // locator -> forced load error
	cmdErr      error            // forced error for all commands
	nextID      int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		subscribers: make(map[*fakeSession]engine.StatusFunc),
		loadErr:     make(map[string]error),
	}
}

func (f *fakeEngine) Load(locator string, autoplay bool) (engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, fakeCommand{op: "load", locator: locator})
	if err := f.loadErr[locator]; err != nil {
		return nil, err
	}
	f.nextID++
	s := &fakeSession{id: fmt.Sprintf("s%d", f.nextID), locator: locator}
	f.active = s
	return s, nil
}

func (f *fakeEngine) command(op string, s engine.Session, pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fs := s.(*fakeSession)
	if f.active != fs {
		return engine.ErrNoSession
	}
	f.commands = append(f.commands, fakeCommand{op: op, locator: fs.locator, pos: pos})
	return f.cmdErr
}

func (f *fakeEngine) Play(s engine.Session) error  { return f.command("play", s, 0) }
func (f *fakeEngine) Pause(s engine.Session) error { return f.command("pause", s, 0) }
func (f *fakeEngine) SeekTo(s engine.Session, pos time.Duration) error {
	return f.command("seek_to", s, pos)
}
func (f *fakeEngine) PlayFrom(s engine.Session, pos time.Duration) error {
	return f.command("play_from", s, pos)
}

func (f *fakeEngine) Unload(s engine.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fs := s.(*fakeSession)
	f.commands = append(f.commands, fakeCommand{op: "unload", locator: fs.locator})
	if f.active == fs {
		f.active = nil
	}
	return nil
}

func (f *fakeEngine) Subscribe(s engine.Session, fn engine.StatusFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[s.(*fakeSession)] = fn
	return nil
}

func (f *fakeEngine) Close() error { return nil }

// fire delivers a status event on the given session, even if it has been
// superseded since (simulating a lagging engine).
func (f *fakeEngine) fire(s engine.Session, st engine.Status) {
	f.mu.Lock()
	fn := f.subscribers[s.(*fakeSession)]
	f.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// activeSession returns the currently loaded fake session.
func (f *fakeEngine) activeSession() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// ops returns the recorded command names in order.
func (f *fakeEngine) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.commands))
	for i, cmd := range f.commands {
		names[i] = cmd.op
	}
	return names
}

// opsOf returns recorded commands matching the given op.
func (f *fakeEngine) opsOf(op string) []fakeCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []fakeCommand
	for _, cmd := range f.commands {
		if cmd.op == op {
			result = append(result, cmd)
		}
	}
	return result
}

func testTracks(names ...string) []track.Track {
	tracks := make([]track.Track, len(names))
	for i, name := range names {
		tracks[i] = track.Track{
			ID:      fmt.Sprintf("id-%s", name),
			Title:   name,
			Locator: "/music/" + name + ".mp3",
		}
	}
	return tracks
}

func newTestController(t *testing.T, names ...string) (*Controller, *fakeEngine, *notice.Center) {
	t.Helper()
	eng := newFakeEngine()
	center := notice.NewCenter()
	c := NewController(playlist.New(testTracks(names...)), eng, center)
	t.Cleanup(func() {
		_ = c.Close()
		center.Close()
	})
	return c, eng, center
}

// waitStatus polls until the controller snapshot satisfies the predicate.
func waitStatus(t *testing.T, c *Controller, desc string, pred func(Status) bool) Status {
	t.Helper()
	require.Eventually(t, func() bool {
		return pred(c.Status())
	}, time.Second, 2*time.Millisecond, desc)
	return c.Status()
}

func TestController_InitialState(t *testing.T) {
	c, _, _ := newTestController(t, "a", "b")

	st := c.Status()
	assert.Equal(t, -1, st.Index)
	assert.False(t, st.Playing)
	assert.False(t, st.Seeking)
	assert.Equal(t, StateNoTrack, st.State())
}

func TestController_SelectTrack(t *testing.T) {
	c, eng, _ := newTestController(t, "a", "b", "c")

	require.NoError(t, c.SelectTrack(1))

	st := c.Status()
	assert.Equal(t, 1, st.Index)
	assert.True(t, st.Playing, "select is optimistic about playback")
	assert.Equal(t, StatePlaying, st.State())
	assert.Equal(t, []string{"load"}, eng.ops())
	assert.Equal(t, "/music/b.mp3", eng.activeSession().locator)
}

func TestController_SelectTrack_OutOfRange(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	assert.ErrorIs(t, c.SelectTrack(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, c.SelectTrack(-1), ErrIndexOutOfRange)
	assert.Empty(t, eng.ops())
}

func TestController_SelectTrack_ReselectRestarts(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))
	require.NoError(t, c.SelectTrack(0))

	// Re-selecting the same index is not a no-op: the track restarts.
	assert.Equal(t, []string{"load", "unload", "load"}, eng.ops())
}

func TestController_SelectTrack_ReleasesBeforeLoad(t *testing.T) {
	c, eng, _ := newTestController(t, "a", "b")

	require.NoError(t, c.SelectTrack(0))
	require.NoError(t, c.SelectTrack(1))

	// The previous session is fully released before the next load begins.
	assert.Equal(t, []string{"load", "unload", "load"}, eng.ops())
	require.NotNil(t, eng.activeSession())
	assert.Equal(t, "/music/b.mp3", eng.activeSession().locator)
}

func TestController_SelectTrack_LoadFailure(t *testing.T) {
	c, eng, center := newTestController(t, "a", "b")
	eng.loadErr["/music/a.mp3"] = errors.New("corrupt header")

	_, notices := center.Subscribe()

	err := c.SelectTrack(0)
	require.Error(t, err)

	st := c.Status()
	assert.Equal(t, -1, st.Index, "state reverts to no track on load failure")
	assert.False(t, st.Playing)

	n := <-notices
	assert.Equal(t, notice.SeverityNotice, n.Severity)
	assert.Equal(t, notice.CodeLoadFailure, n.Code)

	// The user can retry by selecting another track.
	require.NoError(t, c.SelectTrack(1))
	assert.Equal(t, 1, c.Status().Index)
}

func TestController_StaleStatusDiscarded(t *testing.T) {
	c, eng, _ := newTestController(t, "a", "b")

	require.NoError(t, c.SelectTrack(0))
	s1 := eng.activeSession()

	require.NoError(t, c.SelectTrack(1))
	s2 := eng.activeSession()
	require.NotEqual(t, s1, s2)

	// The engine reports track 2 as paused at 5s.
	eng.fire(s2, engine.Status{Loaded: true, Position: 5 * time.Second, IsPlaying: false})
	waitStatus(t, c, "current status applied", func(st Status) bool {
		return !st.Playing && st.Position == 5*time.Second
	})

	// A delayed event from the superseded session claims it is playing at
	// 99s. It must have no effect.
	eng.fire(s1, engine.Status{Loaded: true, Position: 99 * time.Second, IsPlaying: true})

	// Process a later event from the live session to make sure the stale one
	// has been drained past.
	eng.fire(s2, engine.Status{Loaded: true, Position: 6 * time.Second, IsPlaying: false})
	st := waitStatus(t, c, "live status applied", func(st Status) bool {
		return st.Position == 6*time.Second
	})
	assert.False(t, st.Playing, "stale event must not resurrect the playing flag")
	assert.Equal(t, 1, st.Index)
}

func TestController_TogglePlayPause(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	// No session: toggle is a no-op.
	require.NoError(t, c.TogglePlayPause())
	assert.Empty(t, eng.ops())

	require.NoError(t, c.SelectTrack(0))

	// Optimistically playing, so toggle issues pause...
	require.NoError(t, c.TogglePlayPause())
	assert.Len(t, eng.opsOf("pause"), 1)

	// ...but the flag does not flip until the engine confirms.
	assert.True(t, c.Status().Playing)

	eng.fire(eng.activeSession(), engine.Status{Loaded: true, IsPlaying: false})
	waitStatus(t, c, "engine confirms pause", func(st Status) bool { return !st.Playing })

	// Paused now, so the next toggle issues play.
	require.NoError(t, c.TogglePlayPause())
	assert.Len(t, eng.opsOf("play"), 1)
}

func TestController_NextPrevious_Wrap(t *testing.T) {
	c, eng, _ := newTestController(t, "a", "b", "c")

	require.NoError(t, c.SelectTrack(0))

	// Next applied len times returns to the start.
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Next())
	}
	assert.Equal(t, 0, c.Status().Index)

	// Previous wraps to the last track before index 0.
	require.NoError(t, c.Previous())
	assert.Equal(t, 2, c.Status().Index)
	assert.Equal(t, "/music/c.mp3", eng.activeSession().locator)

	// Previous is the exact inverse of Next.
	require.NoError(t, c.Next())
	assert.Equal(t, 0, c.Status().Index)
}

func TestController_NextPrevious_EmptyPlaylist(t *testing.T) {
	c, eng, _ := newTestController(t)

	require.NoError(t, c.Next())
	require.NoError(t, c.Previous())
	assert.Empty(t, eng.ops())
	assert.Equal(t, -1, c.Status().Index)
}

func TestController_Next_FromNoTrack(t *testing.T) {
	c, _, _ := newTestController(t, "a", "b")

	require.NoError(t, c.Next())
	assert.Equal(t, 0, c.Status().Index)
}

func TestController_SeekDebounce(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))
	eng.fire(eng.activeSession(), engine.Status{Loaded: true, IsPlaying: true, Duration: 3 * time.Minute})
	waitStatus(t, c, "duration known", func(st Status) bool { return st.Duration == 3*time.Minute })

	// A drag: many intermediate values, none of which reach the engine.
	for i := 1; i <= 10; i++ {
		c.BeginSeek(time.Duration(i) * time.Second)
	}
	st := c.Status()
	assert.True(t, st.Seeking)
	assert.Equal(t, 10*time.Second, st.SeekTarget, "last value wins")
	assert.Empty(t, eng.opsOf("seek_to"))
	assert.Empty(t, eng.opsOf("play_from"))

	// Commit issues exactly one engine command with the final value.
	require.NoError(t, c.CommitSeek(42*time.Second))

	seeks := eng.opsOf("play_from")
	require.Len(t, seeks, 1, "playing commit uses play-from")
	assert.Equal(t, 42*time.Second, seeks[0].pos)
	assert.Empty(t, eng.opsOf("seek_to"))
	assert.False(t, c.Status().Seeking)
}

func TestController_SeekOverridesDisplayedPosition(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))
	s := eng.activeSession()
	eng.fire(s, engine.Status{Loaded: true, IsPlaying: true, Position: 10 * time.Second, Duration: 3 * time.Minute})
	waitStatus(t, c, "position applied", func(st Status) bool { return st.Position == 10*time.Second })

	c.BeginSeek(30 * time.Second)

	// Engine positions keep arriving mid-drag but must not move the stored
	// position while seeking; the play flag still updates.
	eng.fire(s, engine.Status{Loaded: true, IsPlaying: false, Position: 11 * time.Second, Duration: 3 * time.Minute})
	st := waitStatus(t, c, "pause not masked by seeking", func(st Status) bool { return !st.Playing })
	assert.Equal(t, 10*time.Second, st.Position)
	assert.True(t, st.Seeking)
	assert.Equal(t, 30*time.Second, st.SeekTarget)
}

func TestController_CommitSeekWhilePaused(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))
	eng.fire(eng.activeSession(), engine.Status{Loaded: true, IsPlaying: false, Duration: 3 * time.Minute})
	waitStatus(t, c, "paused", func(st Status) bool { return !st.Playing })

	c.BeginSeek(30 * time.Second)
	require.NoError(t, c.CommitSeek(30*time.Second))

	// Paused commit must seek in place, never start playback.
	seeks := eng.opsOf("seek_to")
	require.Len(t, seeks, 1)
	assert.Equal(t, 30*time.Second, seeks[0].pos)
	assert.Empty(t, eng.opsOf("play_from"))
	assert.False(t, c.Status().Playing)
}

func TestController_CommitSeekWithoutSession(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	c.BeginSeek(5 * time.Second)
	require.NoError(t, c.CommitSeek(5*time.Second))

	assert.False(t, c.Status().Seeking)
	assert.Empty(t, eng.ops())
}

func TestController_SeekTargetClamped(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))
	eng.fire(eng.activeSession(), engine.Status{Loaded: true, IsPlaying: true, Duration: time.Minute})
	waitStatus(t, c, "duration known", func(st Status) bool { return st.Duration == time.Minute })

	c.BeginSeek(-5 * time.Second)
	assert.Equal(t, time.Duration(0), c.Status().SeekTarget)

	c.BeginSeek(2 * time.Minute)
	assert.Equal(t, time.Minute, c.Status().SeekTarget)
}

func TestController_FinishAdvances(t *testing.T) {
	c, eng, _ := newTestController(t, "a", "b", "c")

	require.NoError(t, c.SelectTrack(0))
	s := eng.activeSession()

	eng.fire(s, engine.Status{Loaded: true, JustFinished: true})

	waitStatus(t, c, "advanced to next track", func(st Status) bool { return st.Index == 1 })
	assert.Equal(t, "/music/b.mp3", eng.activeSession().locator)
}

func TestController_FinishOnLastTrackWraps(t *testing.T) {
	// Scenario: tracks [a,b,c], select the last, natural finish wraps to the
	// first and begins loading it.
	c, eng, _ := newTestController(t, "a", "b", "c")

	require.NoError(t, c.SelectTrack(2))
	assert.Equal(t, 2, c.Status().Index)
	s := eng.activeSession()

	eng.fire(s, engine.Status{Loaded: true, JustFinished: true})

	st := waitStatus(t, c, "wrapped to first track", func(st Status) bool { return st.Index == 0 })
	assert.True(t, st.Playing)
	assert.Equal(t, "/music/a.mp3", eng.activeSession().locator)

	loads := eng.opsOf("load")
	require.Len(t, loads, 2)
	assert.Equal(t, "/music/c.mp3", loads[0].locator)
	assert.Equal(t, "/music/a.mp3", loads[1].locator)
}

func TestController_DuplicateFinishIgnored(t *testing.T) {
	c, eng, _ := newTestController(t, "a", "b")

	require.NoError(t, c.SelectTrack(0))
	s := eng.activeSession()

	// The engine delivers the finish twice; only one advance may happen.
	eng.fire(s, engine.Status{Loaded: true, JustFinished: true})
	eng.fire(s, engine.Status{Loaded: true, JustFinished: true})

	waitStatus(t, c, "advanced once", func(st Status) bool { return st.Index == 1 })

	loads := eng.opsOf("load")
	require.Len(t, loads, 2, "duplicate finish must not trigger a second advance")
	assert.Equal(t, "/music/b.mp3", loads[1].locator)
}

func TestController_SessionErrorReported(t *testing.T) {
	c, eng, center := newTestController(t, "a")

	_, notices := center.Subscribe()

	require.NoError(t, c.SelectTrack(0))
	eng.fire(eng.activeSession(), engine.Status{Err: errors.New("decode stalled")})

	require.Eventually(t, func() bool { return len(notices) > 0 }, time.Second, 2*time.Millisecond)
	n := <-notices
	assert.Equal(t, notice.CodeLoadFailure, n.Code)

	// Terminal for the session only; the index is left as-is so the user can
	// retry or move on.
	assert.Equal(t, 0, c.Status().Index)
}

func TestController_CommandFailureKeepsState(t *testing.T) {
	c, eng, center := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))
	eng.cmdErr = errors.New("device busy")

	_, notices := center.Subscribe()

	err := c.TogglePlayPause()
	require.Error(t, err)

	// Transient notice, transport state untouched.
	n := <-notices
	assert.Equal(t, notice.SeverityTransient, n.Severity)
	assert.Equal(t, notice.CodeCommandFailure, n.Code)
	assert.Equal(t, 0, c.Status().Index)
	assert.True(t, c.Status().Playing)
}

func TestController_DuplicateStatusEmitsPosition(t *testing.T) {
	c, eng, _ := newTestController(t, "a")

	require.NoError(t, c.SelectTrack(0))

	// Drain any events emitted so far, then confirm a status-only change
	// surfaces as a position event.
	for len(c.Events()) > 0 {
		<-c.Events()
	}

	eng.fire(eng.activeSession(), engine.Status{Loaded: true, IsPlaying: true, Position: time.Second})

	require.Eventually(t, func() bool { return len(c.Events()) > 0 }, time.Second, 2*time.Millisecond)
	e := <-c.Events()
	assert.Equal(t, EventPositionChanged, e.Type)
	require.NotNil(t, e.Track)
	assert.Equal(t, "a", e.Track.Title)
}

func TestController_Close(t *testing.T) {
	eng := newFakeEngine()
	center := notice.NewCenter()
	defer center.Close()
	c := NewController(playlist.New(testTracks("a")), eng, center)

	require.NoError(t, c.SelectTrack(0))
	require.NoError(t, c.Close())

	// Release is fired for the active session.
	require.Eventually(t, func() bool {
		return len(eng.opsOf("unload")) == 1
	}, time.Second, 2*time.Millisecond)

	// Operations after close are rejected, close is idempotent.
	assert.ErrorIs(t, c.SelectTrack(0), ErrClosed)
	assert.ErrorIs(t, c.TogglePlayPause(), ErrClosed)
	require.NoError(t, c.Close())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateNoTrack, "no_track"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		event    EventType
		expected string
	}{
		{EventTrackChanged, "track_changed"},
		{EventStateChanged, "state_changed"},
		{EventPositionChanged, "position_changed"},
		{EventTrackFailed, "track_failed"},
		{EventType(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.String())
		})
	}
}
