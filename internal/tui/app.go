// internal/tui/app.go
//
// Terminal rendering of the activity form, built on bubbletea (The Elm
// Architecture):
//
// 1. Model: the App, wrapping the form controller
// 2. Update: key presses and finished submissions become state changes
// 3. View: the list, status region, log panel and acknowledgment dialog
//
// Remote calls run inside a tea.Cmd and come back as submitFinishedMsg, so
// the controller is only ever touched from Update.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/driver-activity/internal/activity"
	"github.com/kingrea/driver-activity/internal/form"
	"github.com/kingrea/driver-activity/internal/hostapi"
	"github.com/kingrea/driver-activity/internal/logbook"
	"github.com/kingrea/driver-activity/internal/metrics"
)

const logPanelLines = 6

// Connector signs in to the host ahead of the first submission.
type Connector func(ctx context.Context) error

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithHost attaches the host capability set.
func WithHost(h hostapi.Host) AppOption {
	return func(a *App) {
		a.host = h
	}
}

// WithLogbook sets the diagnostic log shown in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithMetrics records selections and submissions.
func WithMetrics(m *metrics.Metrics) AppOption {
	return func(a *App) {
		a.metrics = m
	}
}

// WithConnector runs c once at startup.
func WithConnector(c Connector) AppOption {
	return func(a *App) {
		a.connect = c
	}
}

// WithContext sets the context passed to remote calls.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

type connState int

const (
	connNone connState = iota
	connPending
	connOK
	connFailed
)

type submitFinishedMsg struct {
	result form.Result
}

type connectFinishedMsg struct {
	err error
}

// HostReadyMsg tells a running App the host announced readiness so the
// footer redraws without waiting for a key press.
type HostReadyMsg struct{}

// NotifyReady forwards host's readiness to send, usually tea.Program.Send.
// The send runs on its own goroutine because Ready may invoke the hook
// before the program's event loop is running.
func NotifyReady(host hostapi.Host, send func(tea.Msg)) {
	if host == nil || send == nil {
		return
	}
	host.Ready(func() { go send(HostReadyMsg{}) })
}

// App is the main application model.
type App struct {
	form    *form.Controller
	list    list.Model
	host    hostapi.Host
	logbook *logbook.Logbook
	metrics *metrics.Metrics
	connect Connector
	ctx     context.Context

	conn    connState
	connErr error

	// ack is non-empty while the blocking acknowledgment dialog is open.
	ack  string
	acks int

	width  int
	height int
}

// NewApp builds the form for catalog.
func NewApp(catalog activity.Catalog, opts ...AppOption) *App {
	a := &App{ctx: context.Background()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	formOpts := []form.Option{form.WithMetrics(a.metrics)}
	if a.host != nil {
		formOpts = append(formOpts, form.WithHost(a.host))
	}
	if a.logbook != nil {
		formOpts = append(formOpts, form.WithLogger(a.logbook.Scoped("form")))
	}
	a.form = form.New(catalog, formOpts...)
	a.list = newActivityList(a.form.Items())
	return a
}

// Form exposes the controller backing the view.
func (a *App) Form() *form.Controller { return a.form }

// Acknowledgments counts success dialogs shown so far.
func (a *App) Acknowledgments() int { return a.acks }

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	if a.connect == nil || !a.form.HostPresent() {
		return nil
	}
	a.conn = connPending
	connect, ctx := a.connect, a.ctx
	return func() tea.Msg {
		return connectFinishedMsg{err: connect(ctx)}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.list.SetSize(max(20, msg.Width-4), max(5, msg.Height-12))
		return a, nil

	case connectFinishedMsg:
		if msg.err != nil {
			a.conn = connFailed
			a.connErr = msg.err
			a.logbook.Scoped("host").Error("sign-in failed: %v", msg.err)
		} else {
			a.conn = connOK
			a.connErr = nil
		}
		return a, nil

	case HostReadyMsg:
		return a, nil

	case submitFinishedMsg:
		if a.form.Complete(msg.result) {
			a.ack = form.TextSubmitted
			a.acks++
		}
		return a, a.refreshItems()

	case tea.KeyMsg:
		if a.ack != "" {
			return a.updateDialog(msg)
		}
		key := msg.String()
		switch key {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "enter", " ", "space":
			return a.selectIndex(a.list.Index())
		case "s":
			return a.submit()
		}
		if idx, ok := indexForHotkey(key); ok {
			return a.selectIndex(idx)
		}
	}

	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)
	return a, cmd
}

func (a *App) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "enter", "esc", " ", "space":
		a.ack = ""
	}
	return a, nil
}

func (a *App) selectIndex(idx int) (tea.Model, tea.Cmd) {
	if !a.form.Select(idx) {
		return a, nil
	}
	a.list.Select(idx)
	return a, a.refreshItems()
}

func (a *App) submit() (tea.Model, tea.Cmd) {
	sub, ok := a.form.Submit()
	if !ok {
		return a, nil
	}
	ctx := a.ctx
	return a, func() tea.Msg {
		return submitFinishedMsg{result: sub.Run(ctx)}
	}
}

func (a *App) refreshItems() tea.Cmd {
	return a.list.SetItems(listItems(a.form.Items()))
}

// View renders the form.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 80
	}
	if a.ack != "" {
		return a.renderDialog(width)
	}
	sections := []string{
		a.list.View(),
		a.renderSelection(),
	}
	if status := a.renderStatus(width); status != "" {
		sections = append(sections, status)
	}
	sections = append(sections, a.renderFooter())
	if panel := a.renderLogPanel(width); panel != "" {
		sections = append(sections, panel)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderSelection() string {
	label, ok := a.form.Selected()
	if !ok {
		return mutedStyle.Render("Nothing selected")
	}
	key := mutedStyle.Render("[" + hotkeyFor(a.form.SelectedIndex()) + "]")
	return "Selected: " + key + " " + selectedStyle.Render(string(label))
}

func (a *App) renderStatus(width int) string {
	st := a.form.Status()
	if !st.Visible {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6B6B")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FF6B6B")).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(st.Text)
}

func (a *App) renderFooter() string {
	parts := []string{"↑/↓ move", "enter select", "1-0 pick", "s submit", "q quit"}
	parts = append(parts, "host: "+a.hostLabel())
	if n := a.form.Pending(); n > 0 {
		parts = append(parts, fmt.Sprintf("submitting (%d)…", n))
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}

func (a *App) hostLabel() string {
	if !a.form.HostPresent() {
		return "offline"
	}
	switch {
	case a.conn == connFailed:
		return "sign-in failed"
	case a.form.HostReady():
		return "ready"
	case a.conn == connPending:
		return "connecting"
	}
	return "waiting"
}

func (a *App) renderDialog(width int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("#3FB950")).
		Padding(1, 4).
		Render(lipgloss.JoinVertical(lipgloss.Center,
			selectedStyle.Render(a.ack),
			"",
			mutedStyle.Render("press enter to continue"),
		))
	height := a.height
	if height <= 0 {
		height = lipgloss.Height(box) + 2
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (a *App) renderLogPanel(width int) string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d entries)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		MaxWidth(max(20, width)).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
