package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	zlog "github.com/rs/zerolog/log"
)

// Verify Local implements Engine at compile time.
var _ Engine = (*Local)(nil)

// Config represents local engine configuration.
type Config struct {
	StatusInterval time.Duration // Cadence of status delivery (default 200ms)
	SpeakerBuffer  time.Duration // Speaker buffer length (default 100ms)
}

// Local is a playback engine backed by the system speaker. Files are decoded
// with beep's format decoders; the speaker is initialized once with the first
// track's sample rate and later tracks are resampled to it.
type Local struct {
	mu sync.Mutex

	statusInterval time.Duration
	speakerBuffer  time.Duration

	initialized bool
	speakerRate beep.SampleRate

	active *localSession
	closed bool
}

// localSession is the live handle for one loaded track.
type localSession struct {
	id      string
	locator string

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	subscriber StatusFunc

	finished    atomic.Bool
	done        chan struct{}
	stopOnce    sync.Once
	monitorQuit sync.WaitGroup
}

// ID returns the unique session ID.
func (s *localSession) ID() string { return s.id }

// Locator returns the locator the session was loaded from.
func (s *localSession) Locator() string { return s.locator }

// NewLocal creates a new local playback engine.
func NewLocal(cfg Config) *Local {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 200 * time.Millisecond
	}
	if cfg.SpeakerBuffer <= 0 {
		cfg.SpeakerBuffer = 100 * time.Millisecond
	}
	return &Local{
		statusInterval: cfg.StatusInterval,
		speakerBuffer:  cfg.SpeakerBuffer,
	}
}

// Load decodes the locator into a new session, replacing any live one.
func (e *Local) Load(locator string, autoplay bool) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	// The controller releases its session before loading the next one, but a
	// leftover here must not leak either.
	if e.active != nil {
		e.unloadLocked(e.active)
	}

	f, err := os.Open(locator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audio file")
	}

	streamer, format, err := decode(f, locator)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", filepath.Base(locator))
	}

	if !e.initialized {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(e.speakerBuffer)); err != nil {
			_ = streamer.Close()
			return nil, errors.Wrap(err, "failed to initialize speaker")
		}
		e.initialized = true
		e.speakerRate = format.SampleRate
	}

	s := &localSession{
		id:       uuid.New().String(),
		locator:  locator,
		streamer: streamer,
		format:   format,
		ctrl:     &beep.Ctrl{Streamer: streamer, Paused: !autoplay},
		done:     make(chan struct{}),
	}

	var playable beep.Streamer = s.ctrl
	if format.SampleRate != e.speakerRate {
		playable = beep.Resample(4, format.SampleRate, e.speakerRate, s.ctrl)
	}

	speaker.Play(beep.Seq(playable, beep.Callback(func() {
		s.finished.Store(true)
	})))

	e.active = s
	zlog.Debug().Msgf("engine: loaded session %s: locator=%s autoplay=%v", s.id, locator, autoplay)
	return s, nil
}

// Play resumes playback of the session.
func (e *Local) Play(sess Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.activeSession(sess)
	if err != nil {
		return err
	}

	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Pause pauses playback of the session.
func (e *Local) Pause(sess Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.activeSession(sess)
	if err != nil {
		return err
	}

	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// SeekTo moves the playback position. The play/pause state is left untouched,
// so seeking while paused does not start playback.
func (e *Local) SeekTo(sess Session, pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.activeSession(sess)
	if err != nil {
		return err
	}
	return s.seekLocked(pos, false)
}

// PlayFrom moves the playback position and resumes playback.
func (e *Local) PlayFrom(sess Session, pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.activeSession(sess)
	if err != nil {
		return err
	}
	return s.seekLocked(pos, true)
}

// Unload releases the session. Returns after the monitor goroutine has
// stopped, so no further status events can be emitted for it. Unloading a
// session that has already been superseded is a no-op.
func (e *Local) Unload(sess Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := sess.(*localSession)
	if !ok || e.active != s {
		zlog.Debug().Msgf("engine: unload of superseded session %s ignored", sess.ID())
		return nil
	}

	e.unloadLocked(s)
	return nil
}

// Subscribe attaches the status callback and starts the monitor goroutine.
// Must be called at most once per session.
func (e *Local) Subscribe(sess Session, fn StatusFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.activeSession(sess)
	if err != nil {
		return err
	}

	s.subscriber = fn
	s.monitorQuit.Add(1)
	go e.monitor(s)
	return nil
}

// Close releases the live session, if any, and shuts the engine down.
func (e *Local) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.active != nil {
		e.unloadLocked(e.active)
	}
	return nil
}

// activeSession resolves a handle to the live session. Must be called with
// e.mu held.
func (e *Local) activeSession(sess Session) (*localSession, error) {
	if e.closed {
		return nil, ErrClosed
	}
	s, ok := sess.(*localSession)
	if !ok || e.active != s {
		return nil, ErrNoSession
	}
	return s, nil
}

// unloadLocked stops status delivery, silences the speaker and closes the
// streamer. Must be called with e.mu held.
func (e *Local) unloadLocked(s *localSession) {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	// The monitor never takes e.mu, so waiting here cannot deadlock.
	s.monitorQuit.Wait()

	speaker.Clear()
	if err := s.streamer.Close(); err != nil {
		zlog.Warn().Msgf("engine: failed to close streamer for session %s: %v", s.id, err)
	}

	if e.active == s {
		e.active = nil
	}
	zlog.Debug().Msgf("engine: unloaded session %s", s.id)
}

// seekLocked seeks the session streamer, optionally resuming playback in the
// same speaker critical section. Must be called with e.mu held.
func (s *localSession) seekLocked(pos time.Duration, resume bool) error {
	if pos < 0 {
		pos = 0
	}

	speaker.Lock()
	defer speaker.Unlock()

	n := s.format.SampleRate.N(pos)
	if total := s.streamer.Len(); total > 0 && n >= total {
		n = total - 1
	}
	if err := s.streamer.Seek(n); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	if resume {
		s.ctrl.Paused = false
	}
	return nil
}

// monitor emits status snapshots until the session finishes or is unloaded.
func (e *Local) monitor(s *localSession) {
	defer s.monitorQuit.Done()

	// First snapshot right away so the controller can correct its
	// optimistic state without waiting a full interval.
	s.emit()

	ticker := time.NewTicker(e.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if finished := s.emit(); finished {
				return
			}
		}
	}
}

// emit sends one status snapshot to the subscriber. Returns true once the
// finish notification has been delivered; after that no further events follow.
func (s *localSession) emit() bool {
	finished := s.finished.Load()

	speaker.Lock()
	position := s.format.SampleRate.D(s.streamer.Position())
	var duration time.Duration
	if total := s.streamer.Len(); total > 0 {
		duration = s.format.SampleRate.D(total)
	}
	playing := !s.ctrl.Paused && !finished
	speaker.Unlock()

	if finished && duration > 0 {
		position = duration
	}

	s.subscriber(Status{
		Loaded:       true,
		Position:     position,
		Duration:     duration,
		IsPlaying:    playing,
		JustFinished: finished,
	})
	return finished
}

// decode picks a decoder by file extension.
func decode(f *os.File, locator string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".wav":
		return wav.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".ogg":
		return vorbis.Decode(f)
	default:
		return nil, beep.Format{}, ErrUnsupportedFormat
	}
}
