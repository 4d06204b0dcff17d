package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/osa030/solobox/internal/app/notice"
	"github.com/osa030/solobox/internal/app/playback"
	"github.com/osa030/solobox/internal/domain/playlist"
)

// App runs the player window until the user quits.
type App struct {
	model *Model
}

// NewApp creates the terminal application over a running transport.
func NewApp(ctrl *playback.Controller, pl *playlist.Playlist, center *notice.Center, messages MessageFunc) *App {
	return &App{
		model: NewModel(ctrl, pl, center, messages),
	}
}

// Run blocks until the window closes.
func (a *App) Run() error {
	p := tea.NewProgram(a.model, tea.WithAltScreen())

	_, err := p.Run()

	a.model.Close()

	return err
}
