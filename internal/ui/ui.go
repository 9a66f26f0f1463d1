package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
	"github.com/desertthunder/isoca/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SignedOutView ViewState = iota
	WaitingView
	TracksView
)

// HealthChecker reports whether the backend proxy is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (*services.HealthStatus, error)
}

// Options configures a [Model].
type Options struct {
	Controller *session.Controller
	Location   session.Location
	// Login runs the browser sign-in and returns once the token is stored.
	Login   func(ctx context.Context) error
	Backend HealthChecker
	// Open shows a link in the browser. Defaults to [shared.OpenBrowser].
	Open func(url string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	ctrl      *session.Controller
	loc       session.Location
	login     func(ctx context.Context) error
	backend   HealthChecker
	open      func(url string) error
	updates   <-chan session.Snapshot
	stop      func()
	snapshot  session.Snapshot
	trackList list.Model
	health    string
	loggingIn bool
	err       error
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}

	updates, stop := opts.Controller.Subscribe()
	trackList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	trackList.Title = "Your Top Tracks"

	return &Model{
		ctx:       ctx,
		view:      SignedOutView,
		ctrl:      opts.Controller,
		loc:       opts.Location,
		login:     opts.Login,
		backend:   opts.Backend,
		open:      opts.Open,
		updates:   updates,
		stop:      stop,
		trackList: trackList,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init starts following the session and checks the backend.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSession(), m.checkHealth())
}

// Close stops following the session.
func (m *Model) Close() {
	m.stop()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSession:
		m.apply(msg.data.(session.Snapshot))
		return m, m.waitForSession()

	case MsgSessionClosed:
		return m, tea.Quit

	case MsgLoginDone:
		m.loggingIn = false
		if err := errData(msg.data); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.ctrl.Load(m.ctx, m.loc)
		return m, nil

	case MsgHealth:
		data := msg.data.(struct {
			status *services.HealthStatus
			err    error
		})
		if data.err != nil {
			m.health = styles.err.Render(fmt.Sprintf("backend unavailable: %v", data.err))
		} else {
			m.health = styles.ok.Render(fmt.Sprintf("backend %s", data.status.Status))
		}
		return m, nil

	case MsgOpened:
		m.err = errData(msg.data)
		return m, nil
	}
	return m, nil
}

// apply switches view for a new snapshot.
func (m *Model) apply(snap session.Snapshot) {
	m.snapshot = snap
	switch {
	case snap.State.Status == session.Authenticating:
		m.view = WaitingView
	case snap.SignedIn():
		m.view = TracksView
		m.trackList.SetItems(trackItems(snap.Tracks))
	default:
		m.view = SignedOutView
		m.trackList.SetItems(nil)
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == TracksView && m.trackList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.login) && m.view == SignedOutView:
		return m, m.startLogin()
	case key.Matches(msg, m.keys.logout) && m.view == TracksView:
		m.ctrl.Logout()
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.ctrl.Refresh()
		return m, m.checkHealth()
	case key.Matches(msg, m.keys.open) && m.view == TracksView:
		if item, ok := m.trackList.SelectedItem().(trackItem); ok && item.track.Link != "" {
			return m, m.openLink(item.track.Link)
		}
		return m, nil
	}

	return m.updateList(msg)
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != TracksView {
		return m, nil
	}
	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) waitForSession() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.updates
		if !ok {
			return sessionClosedMsg()
		}
		return sessionMsg(snap)
	}
}

func (m *Model) checkHealth() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	return func() tea.Msg {
		status, err := m.backend.Health(m.ctx)
		return healthMsg(status, err)
	}
}

func (m *Model) startLogin() tea.Cmd {
	if m.login == nil || m.loggingIn {
		return nil
	}
	m.loggingIn = true
	m.err = nil
	return func() tea.Msg {
		return loginDoneMsg(m.login(m.ctx))
	}
}

func (m *Model) openLink(link string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg(m.open(link))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case WaitingView:
		return m.renderWaiting()
	case TracksView:
		return m.renderTracks()
	default:
		return m.renderSignedOut()
	}
}

func (m *Model) statusLine() string {
	state := m.snapshot.State
	line := styles.Status(state.Status).Render(state.Status.String())
	if state.Token != "" {
		line += styles.help.Render(" " + shared.MaskToken(state.Token))
	}
	if m.health != "" {
		line += "  " + m.health
	}
	return line
}

func (m *Model) errorLines() string {
	var lines []string
	if m.snapshot.State.Reason != "" {
		lines = append(lines, styles.err.Render("Sign-in failed: "+m.snapshot.State.Reason))
	}
	if m.snapshot.Notice != "" {
		lines = append(lines, styles.warn.Render(m.snapshot.Notice))
	}
	if m.err != nil {
		lines = append(lines, styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n") + "\n"
}

func (m *Model) renderSignedOut() string {
	title := styles.title.Render("Isoca Spot")

	prompt := "Press l to log in with Spotify."
	if m.loggingIn {
		prompt = "Waiting for the browser sign-in to finish..."
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.login, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n%s", title, m.statusLine(), m.errorLines(), prompt, helpView)
}

func (m *Model) renderWaiting() string {
	title := styles.title.Render("Isoca Spot")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\nCompleting Spotify sign-in...\n\n%s", title, m.statusLine(), helpView)
}

func (m *Model) renderTracks() string {
	var body string
	switch {
	case m.snapshot.Loading:
		body = "Loading top tracks..."
	case len(m.snapshot.Tracks) == 0:
		body = "No tracks to show."
	default:
		body = m.trackList.View()
	}

	helpKeys := []key.Binding{m.keys.open, m.keys.refresh, m.keys.logout, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", m.statusLine(), m.errorLines(), body, helpView)
}
