package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/driver-activity/internal/form"
)

// activityItem implements list.Item for one activity row.
type activityItem struct {
	index    int
	label    string
	selected bool
}

func (i activityItem) FilterValue() string { return i.label }

var (
	rowStyle      = lipgloss.NewStyle().PaddingLeft(2)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// activityDelegate draws one line per activity: a cursor marker for the
// focused row and a dot for the selected one.
type activityDelegate struct{}

func (activityDelegate) Height() int                             { return 1 }
func (activityDelegate) Spacing() int                            { return 0 }
func (activityDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (activityDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(activityItem)
	if !ok {
		return
	}
	cursor := " "
	if index == m.Index() {
		cursor = cursorStyle.Render("›")
	}
	mark := mutedStyle.Render("○")
	label := it.label
	if it.selected {
		mark = selectedStyle.Render("●")
		label = selectedStyle.Render(label)
	}
	hotkey := mutedStyle.Render(hotkeyFor(it.index))
	fmt.Fprint(w, rowStyle.Render(strings.Join([]string{cursor, hotkey, mark, label}, " ")))
}

// hotkeyFor labels the first ten rows 1-9 then 0.
func hotkeyFor(index int) string {
	switch {
	case index < 9:
		return fmt.Sprintf("%d", index+1)
	case index == 9:
		return "0"
	}
	return " "
}

// indexForHotkey maps a digit key back to a row index.
func indexForHotkey(key string) (int, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	if key == "0" {
		return 9, true
	}
	return int(key[0] - '1'), true
}

func listItems(items []form.Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = activityItem{index: i, label: string(it.Label), selected: it.Selected}
	}
	return out
}

func newActivityList(items []form.Item) list.Model {
	l := list.New(listItems(items), activityDelegate{}, 0, 0)
	l.Title = "⬡ DRIVER ACTIVITY"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Padding(0, 1)
	return l
}
