package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/osa030/solobox/internal/app/viewmodel"
	"github.com/osa030/solobox/internal/domain/track"
)

// trackItem adapts a playlist entry to the list widget.
type trackItem struct {
	index int
	track track.Track
}

func (i trackItem) FilterValue() string {
	return fmt.Sprintf("%s %s", i.track.Artist, i.track.Title)
}

// trackDelegate renders one playlist row.
type trackDelegate struct {
	playingIndex func() int
}

func (d trackDelegate) Height() int                             { return 1 }
func (d trackDelegate) Spacing() int                            { return 0 }
func (d trackDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d trackDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(trackItem)
	if !ok {
		return
	}

	marker := " "
	if d.playingIndex != nil && d.playingIndex() == i.index {
		marker = "▶"
	}

	clock := viewmodel.FormatClock(i.track.Duration)
	str := fmt.Sprintf("%s %-3d %-40s %s",
		marker,
		i.index+1,
		truncate(i.track.DisplayName(), 40),
		clock)

	fn := itemStyle.Render
	if index == m.Index() {
		fn = func(s ...string) string {
			return selectedItemStyle.Render("> " + strings.Join(s, " "))
		}
	}

	fmt.Fprint(w, fn(str))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
