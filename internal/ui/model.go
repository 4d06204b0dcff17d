// Package ui provides the terminal interface for the player: a playlist
// view, a transport bar, and a notice line, built on Bubble Tea.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/solobox/internal/app/notice"
	"github.com/osa030/solobox/internal/app/playback"
	"github.com/osa030/solobox/internal/app/viewmodel"
	"github.com/osa030/solobox/internal/domain/playlist"
)

// seekStep is how far one arrow key press moves the seek target.
const seekStep = 5 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginLeft(2).
			MarginBottom(1)

	itemStyle         = lipgloss.NewStyle().PaddingLeft(4)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	paginationStyle   = list.DefaultStyles().PaginationStyle.PaddingLeft(4)

	trackNameStyle = lipgloss.NewStyle().
			Bold(true).
			MarginLeft(2)

	clockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginLeft(2)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			MarginLeft(2)

	blockingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff0000")).
			Bold(true).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginLeft(2).
			MarginTop(1)
)

// eventMsg carries one transport event into the update loop.
type eventMsg struct {
	event playback.Event
}

// eventsClosedMsg is delivered when the transport shuts down.
type eventsClosedMsg struct{}

// noticeMsg carries one published notice into the update loop.
type noticeMsg struct {
	notice notice.Notice
}

// noticesClosedMsg is delivered when the notice center shuts down.
type noticesClosedMsg struct{}

// clearNoticeMsg expires a transient notice. SequenceNo guards against
// clearing a newer notice than the one the timer was armed for.
type clearNoticeMsg struct {
	sequenceNo uint64
}

// MessageFunc resolves a notice code to user-facing text.
type MessageFunc func(code string) string

// Model is the Bubble Tea model for the player window.
type Model struct {
	ctrl     *playback.Controller
	playlist *playlist.Playlist
	messages MessageFunc

	noticeCenter *notice.Center
	noticeSubID  string
	noticeCh     <-chan notice.Notice

	list        list.Model
	progressBar progress.Model

	status playback.Status
	view   viewmodel.View

	pendingSeek time.Duration
	seeking     bool

	noticeText     string
	noticeSeverity notice.Severity
	noticeSeq      uint64
	blocked        bool

	width    int
	height   int
	quitting bool
}

// NewModel builds the player window over an already-running transport.
func NewModel(ctrl *playback.Controller, pl *playlist.Playlist, center *notice.Center, messages MessageFunc) *Model {
	items := make([]list.Item, pl.Len())
	for i := 0; i < pl.Len(); i++ {
		trk, _ := pl.Get(i)
		items[i] = trackItem{index: i, track: trk}
	}

	m := &Model{
		ctrl:         ctrl,
		playlist:     pl,
		messages:     messages,
		noticeCenter: center,
	}

	l := list.New(items, trackDelegate{playingIndex: func() int { return m.status.Index }}, 0, 0)
	l.Title = "Playlist"
	l.SetShowStatusBar(false)
	l.SetShowTitle(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	m.list = l
	m.progressBar = prog
	m.status = ctrl.Status()
	m.view = viewmodel.Project(m.status, pl)

	if center != nil {
		m.noticeSubID, m.noticeCh = center.Subscribe()
	}

	return m
}

// Init starts the event and notice pumps.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listenForEvents()}
	if m.noticeCh != nil {
		cmds = append(cmds, m.listenForNotices())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(max(msg.Height-9, 3))
		m.progressBar.Width = min(60, msg.Width-10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.status = msg.event.Status
		m.refreshView()
		return m, tea.Batch(
			m.progressBar.SetPercent(m.view.Progress),
			m.listenForEvents(),
		)

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case noticeMsg:
		cmd := m.applyNotice(msg.notice)
		return m, tea.Batch(cmd, m.listenForNotices())

	case noticesClosedMsg:
		return m, nil

	case clearNoticeMsg:
		if msg.sequenceNo == m.noticeSeq && m.noticeSeverity == notice.SeverityTransient {
			m.noticeText = ""
		}
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progressBar.Update(msg)
		m.progressBar = progressModel.(progress.Model)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Let the list's filter input swallow keys while it is active.
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	}

	if m.blocked {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		if m.seeking {
			target := m.pendingSeek
			m.seeking = false
			if err := m.ctrl.CommitSeek(target); err != nil {
				zlog.Warn().Err(err).Msgf("seek failed")
			}
			return m, nil
		}
		if item, ok := m.list.SelectedItem().(trackItem); ok {
			if err := m.ctrl.SelectTrack(item.index); err != nil {
				zlog.Warn().Err(err).Msgf("track selection failed")
			}
		}
		return m, nil

	case " ":
		if err := m.ctrl.TogglePlayPause(); err != nil {
			zlog.Warn().Err(err).Msgf("play/pause failed")
		}
		return m, nil

	case "n", "N":
		if err := m.ctrl.Next(); err != nil {
			zlog.Warn().Err(err).Msgf("next track failed")
		}
		return m, nil

	case "p", "P":
		if err := m.ctrl.Previous(); err != nil {
			zlog.Warn().Err(err).Msgf("previous track failed")
		}
		return m, nil

	case "left":
		m.beginSeek(-seekStep)
		return m, nil

	case "right":
		m.beginSeek(seekStep)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// beginSeek moves the pending seek target without touching the engine.
// The target only reaches the engine when the user commits with enter.
func (m *Model) beginSeek(delta time.Duration) {
	if m.status.Index < 0 {
		return
	}
	base := m.view.Position
	if m.seeking {
		base = m.pendingSeek
	}
	target := base + delta
	if target < 0 {
		target = 0
	}
	if m.status.Duration > 0 && target > m.status.Duration {
		target = m.status.Duration
	}
	m.pendingSeek = target
	m.seeking = true
	m.ctrl.BeginSeek(target)
	m.status = m.ctrl.Status()
	m.refreshView()
}

func (m *Model) applyNotice(n notice.Notice) tea.Cmd {
	text := n.Message
	if m.messages != nil {
		if t := m.messages(n.Code); t != "" {
			text = t
		}
	}

	m.noticeText = text
	m.noticeSeverity = n.Severity
	m.noticeSeq = n.SequenceNo
	if n.Severity == notice.SeverityBlocking {
		m.blocked = true
	}

	if n.Severity == notice.SeverityTransient {
		seq := n.SequenceNo
		return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return clearNoticeMsg{sequenceNo: seq}
		})
	}
	return nil
}

func (m *Model) refreshView() {
	m.view = viewmodel.Project(m.status, m.playlist)
	if m.seeking {
		m.view.Position = m.pendingSeek
		m.view.Clock = viewmodel.FormatClock(m.pendingSeek)
	}
}

// View renders the player window.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	if m.blocked {
		return fmt.Sprintf(
			"%s\n\n%s\n\n%s",
			titleStyle.Render("Player"),
			blockingStyle.Render(m.noticeText),
			helpStyle.Render("q: quit"),
		)
	}

	name := m.view.TrackName
	if name == "" {
		name = "No track selected"
	}

	clock := fmt.Sprintf("%s / %s", m.view.Clock, m.view.ClockTotal)
	stateLabel := m.status.State().String()
	if m.seeking {
		clock += "  (seeking)"
	}

	noticeLine := ""
	if m.noticeText != "" {
		noticeLine = noticeStyle.Render(m.noticeText) + "\n"
	}

	return fmt.Sprintf(
		"%s\n%s\n%s  %s  [%s]\n%s%s",
		m.list.View(),
		trackNameStyle.Render(name),
		clockStyle.Render(m.progressBar.View()),
		clock,
		stateLabel,
		noticeLine,
		helpStyle.Render("enter: play/commit seek • space: pause • n/p: next/prev • ←/→: seek • q: quit"),
	)
}

// Close releases the notice subscription.
func (m *Model) Close() {
	if m.noticeCenter != nil && m.noticeSubID != "" {
		m.noticeCenter.Unsubscribe(m.noticeSubID)
		m.noticeSubID = ""
	}
}

// listenForEvents waits for the next transport event.
func (m *Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.ctrl.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// listenForNotices waits for the next published notice.
func (m *Model) listenForNotices() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.noticeCh
		if !ok {
			return noticesClosedMsg{}
		}
		return noticeMsg{notice: n}
	}
}
