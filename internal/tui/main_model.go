package tui

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"conversa/internal/app"
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

type spinMsg struct{}

type sessionsLoadedMsg struct {
	sessions []app.Session
	jump     bool
	err      error
}

type sendDoneMsg struct{ issued bool }

type historyLoadedMsg struct {
	sessionID string
	err       error
}

type sessionCreatedMsg struct {
	id  string
	err error
}

type renameDoneMsg struct {
	id    string
	title string
	err   error
}

type deleteDoneMsg struct {
	id  string
	err error
}

type controllerEventMsg struct{ ev app.SessionEvent }

type storeChangedMsg struct{}

type saveDoneMsg struct {
	path string
	err  error
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// MainModel is the whole shell: sidebar, chat pane, input bar, and the wiring
// between the session store, the conversation controller, and the URL-like
// notion of an active session.
type MainModel struct {
	client *app.Client
	store  *app.SessionStore
	conv   *app.Controller
	logger *app.Logger

	cfg       app.Config
	statePath string

	mode  app.Mode
	theme Theme
	help  helpModel

	width  int
	height int
	ready  bool
	focus  focusArea

	input    textarea.Model
	chatVP   viewport.Model
	markdown *MarkdownRenderer

	sidebarSel  int
	renaming    bool
	renameInput textinput.Model

	imageQueue []string
	typer      *typewriter

	sending    bool
	creating   bool
	spinnerPos int
	status     string

	// events carries store/controller notifications from their goroutines
	// back into the bubbletea loop.
	events chan tea.Msg
}

func NewMainModel(client *app.Client, logger *app.Logger, cfg app.Config, state app.UIState, statePath string) *MainModel {
	ta := textarea.New()
	ta.Placeholder = "Type a message and press Enter…"
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	ri := textinput.New()
	ri.CharLimit = 120

	themeName := state.Theme
	if themeName == "" {
		themeName = cfg.Theme
	}
	theme := ThemeFor(themeName)

	mode, ok := app.ParseMode(state.LastMode)
	if !ok {
		mode, _ = app.ParseMode(cfg.DefaultMode)
	}

	m := &MainModel{
		client:      client,
		store:       app.NewSessionStore(),
		conv:        app.NewController(client, logger, mode),
		logger:      logger,
		cfg:         cfg,
		statePath:   statePath,
		mode:        mode,
		theme:       theme,
		help:        newHelpModel(),
		width:       100,
		height:      30,
		focus:       focusInput,
		input:       ta,
		renameInput: ri,
		markdown:    NewMarkdownRenderer(theme),
		events:      make(chan tea.Msg, 16),
	}

	m.conv.SetOnSession(func(ev app.SessionEvent) {
		m.events <- controllerEventMsg{ev: ev}
	})
	m.store.SetOnChange(func() {
		m.events <- storeChangedMsg{}
	})

	// Restore the last open session; its history loads on startup.
	if state.LastSessionID != "" {
		m.conv.SetSession(state.LastSessionID)
	}
	return m
}

func (m *MainModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.fetchSessionsCmd(false), m.waitEvent()}
	if sid := m.conv.SessionID(); sid != "" {
		cmds = append(cmds, m.loadHistoryCmd(sid))
	}
	return tea.Batch(cmds...)
}

/* ---------------- commands ---------------- */

func (m *MainModel) waitEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m *MainModel) fetchSessionsCmd(jump bool) tea.Cmd {
	mode := m.mode
	return func() tea.Msg {
		list, err := m.client.ListSessions(context.Background(), mode)
		return sessionsLoadedMsg{sessions: list, jump: jump, err: err}
	}
}

func (m *MainModel) sendTextCmd(raw string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{issued: m.conv.SendText(context.Background(), raw)}
	}
}

func (m *MainModel) askOcrCmd(raw string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{issued: m.conv.AskOCR(context.Background(), raw)}
	}
}

func (m *MainModel) sendImagesCmd(raw string, paths []string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{issued: m.conv.SendImages(context.Background(), raw, paths)}
	}
}

func (m *MainModel) loadHistoryCmd(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.conv.LoadHistory(context.Background(), id)
		return historyLoadedMsg{sessionID: id, err: err}
	}
}

func (m *MainModel) newSessionCmd() tea.Cmd {
	mode := m.mode
	return func() tea.Msg {
		id, err := m.client.NewSession(context.Background(), mode)
		return sessionCreatedMsg{id: id, err: err}
	}
}

func (m *MainModel) renameCmd(id, title string) tea.Cmd {
	return func() tea.Msg {
		err := m.client.RenameSession(context.Background(), id, title)
		return renameDoneMsg{id: id, title: title, err: err}
	}
}

func (m *MainModel) deleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.client.DeleteSession(context.Background(), id)
		return deleteDoneMsg{id: id, err: err}
	}
}

func (m *MainModel) saveImageCmd(src string) tea.Cmd {
	return func() tea.Msg {
		dir, err := os.UserHomeDir()
		if err != nil {
			dir = "."
		}
		path, err := m.client.SaveAttachment(context.Background(), src, dir)
		return saveDoneMsg{path: path, err: err}
	}
}

func (m *MainModel) spinCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return spinMsg{} })
}

/* ---------------- update ---------------- */

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinMsg:
		if !m.sending {
			return m, nil
		}
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		return m, m.spinCmd()

	case typeTickMsg:
		return m, m.advanceTypewriter()

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.status = "Failed to fetch sessions"
			m.logger.Error("fetch sessions", map[string]interface{}{"error": msg.err.Error()})
			return m, nil
		}
		m.store.Replace(msg.sessions)
		if !msg.jump {
			return m, nil
		}
		// After a mode switch: open the first session of the new mode, or
		// fall back to the blank route.
		if entries := m.store.ListByMode(m.mode); len(entries) > 0 {
			m.sidebarSel = 0
			m.conv.SetSession(entries[0].ID)
			m.persistState()
			m.refreshTranscript()
			return m, m.loadHistoryCmd(entries[0].ID)
		}
		m.conv.SetSession("")
		m.persistState()
		m.refreshTranscript()
		return m, nil

	case sendDoneMsg:
		m.sending = false
		m.refreshTranscript()
		m.chatVP.GotoBottom()
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			m.status = "Failed to load history"
			m.logger.Error("load history", map[string]interface{}{
				"session": msg.sessionID,
				"error":   msg.err.Error(),
			})
			return m, nil
		}
		m.refreshTranscript()
		m.chatVP.GotoBottom()
		return m, nil

	case sessionCreatedMsg:
		m.creating = false
		if msg.err != nil {
			m.status = "Failed to create session"
			return m, nil
		}
		m.store.Upsert(app.Session{ID: msg.id, Title: "New chat", Mode: m.mode})
		m.sidebarSel = 0
		m.conv.SetSession(msg.id)
		m.persistState()
		m.refreshTranscript()
		return m, m.loadHistoryCmd(msg.id)

	case renameDoneMsg:
		if msg.err != nil {
			m.status = "Failed to rename session"
			return m, nil
		}
		if m.store.Rename(msg.id, msg.title) {
			return m, m.startTypewriter(msg.id, msg.title)
		}
		return m, nil

	case deleteDoneMsg:
		if msg.err != nil {
			m.status = "Failed to delete session"
			return m, nil
		}
		m.store.Remove(msg.id)
		if msg.id == m.conv.SessionID() {
			m.conv.SetSession("")
			m.persistState()
		}
		m.refreshTranscript()
		return m, nil

	case controllerEventMsg:
		cmd := m.handleSessionEvent(msg.ev)
		return m, tea.Batch(m.waitEvent(), cmd)

	case storeChangedMsg:
		// A rename flag cleared; just re-render.
		return m, m.waitEvent()

	case saveDoneMsg:
		if msg.err != nil {
			m.status = "Download failed"
		} else {
			m.status = "Saved " + msg.path
		}
		return m, nil
	}

	return m, nil
}

// handleSessionEvent applies a controller notification: the one authoritative
// place where a server-assigned id reaches the sidebar and persisted state.
func (m *MainModel) handleSessionEvent(ev app.SessionEvent) tea.Cmd {
	switch ev.Kind {
	case app.SessionCreated:
		m.store.Upsert(app.Session{ID: ev.SessionID, Title: ev.Title, Mode: ev.Mode})
		m.sidebarSel = 0
		m.persistState()
	case app.SessionTitled:
		if m.store.Rename(ev.SessionID, ev.Title) {
			return m.startTypewriter(ev.SessionID, ev.Title)
		}
	}
	return nil
}

func (m *MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys

	if key.Matches(msg, keys.Quit) {
		m.persistState()
		return m, tea.Quit
	}

	if m.renaming {
		return m.handleRenameKey(msg)
	}

	if m.conv.Zoomed() != "" {
		switch {
		case key.Matches(msg, keys.Escape):
			m.conv.SetZoom("")
		case key.Matches(msg, keys.Save):
			return m, m.saveImageCmd(m.conv.Zoomed())
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Focus):
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, keys.NewChat):
		if m.creating {
			return m, nil
		}
		m.creating = true
		return m, m.newSessionCmd()

	case key.Matches(msg, keys.CycleMode):
		return m.switchMode(m.mode.Next())

	case key.Matches(msg, keys.Theme):
		m.theme = m.theme.Toggle()
		m.markdown = NewMarkdownRenderer(m.theme)
		m.persistState()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, keys.Zoom):
		if src, ok := m.latestImage(); ok {
			m.conv.SetZoom(src)
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m *MainModel) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys
	switch {
	case key.Matches(msg, keys.Send):
		m.renaming = false
		title := strings.TrimSpace(m.renameInput.Value())
		sess, ok := m.selectedSession()
		if !ok || title == "" {
			return m, nil
		}
		return m, m.renameCmd(sess.ID, title)
	case key.Matches(msg, keys.Escape):
		m.renaming = false
		return m, nil
	}
	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

func (m *MainModel) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys
	switch {
	case key.Matches(msg, keys.Up):
		if m.sidebarSel > 0 {
			m.sidebarSel--
		}
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.sidebarSel < len(m.sidebarEntries())-1 {
			m.sidebarSel++
		}
		return m, nil

	case key.Matches(msg, keys.Send):
		sess, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		if !m.conv.SetSession(sess.ID) {
			return m, nil
		}
		m.persistState()
		m.refreshTranscript()
		return m, m.loadHistoryCmd(sess.ID)

	case key.Matches(msg, keys.Rename):
		sess, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		m.renaming = true
		m.renameInput.SetValue(sess.DisplayTitle())
		m.renameInput.CursorEnd()
		m.renameInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Delete):
		sess, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		return m, m.deleteCmd(sess.ID)
	}
	return m, nil
}

func (m *MainModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.help.keys
	if key.Matches(msg, keys.Send) {
		if m.sending {
			// Reentrancy guard: ignore sends while one is in flight.
			return m, nil
		}
		raw := m.input.Value()

		if m.mode == app.ModeOCR {
			if m.tryConsumeImagePaste(raw) {
				m.input.Reset()
				return m, nil
			}
			if len(m.imageQueue) > 0 {
				paths := append([]string(nil), m.imageQueue...)
				m.clearImageQueue()
				m.input.Reset()
				m.sending = true
				m.refreshTranscript()
				return m, tea.Batch(m.sendImagesCmd(raw, paths), m.spinCmd())
			}
			m.input.Reset()
			m.sending = true
			return m, tea.Batch(m.askOcrCmd(raw), m.spinCmd())
		}

		if strings.TrimSpace(raw) == "" {
			return m, nil
		}
		m.input.Reset()
		m.sending = true
		return m, tea.Batch(m.sendTextCmd(raw), m.spinCmd())
	}

	switch msg.String() {
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chatVP, cmd = m.chatVP.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// switchMode clears the conversation and re-fetches the session list for the
// target mode; the loaded-list handler then jumps to its first session.
func (m *MainModel) switchMode(mode app.Mode) (tea.Model, tea.Cmd) {
	if mode == m.mode {
		return m, nil
	}
	m.mode = mode
	m.conv.SetMode(mode)
	m.clearImageQueue()
	m.sidebarSel = 0
	m.persistState()
	m.refreshTranscript()
	return m, m.fetchSessionsCmd(true)
}

// latestImage finds the most recent transcript image for zooming.
func (m *MainModel) latestImage() (string, bool) {
	msgs := m.conv.Transcript()
	for i := len(msgs) - 1; i >= 0; i-- {
		if n := len(msgs[i].Images); n > 0 {
			return msgs[i].Images[0], true
		}
	}
	return "", false
}

func (m *MainModel) persistState() {
	if m.statePath == "" {
		return
	}
	st := app.UIState{
		LastSessionID: m.conv.SessionID(),
		LastMode:      string(m.mode),
		Theme:         string(m.theme.Name),
	}
	if err := app.SaveUIState(st, m.statePath); err != nil {
		m.logger.Error("persist state", map[string]interface{}{"error": err.Error()})
	}
}

/* ---------------- view ---------------- */

func (m *MainModel) sidebarWidth() int {
	w := m.width / 4
	if w < 24 {
		w = 24
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (m *MainModel) layout() {
	chatWidth := m.width - m.sidebarWidth() - 6
	chatHeight := m.height - 9
	if chatWidth < 20 {
		chatWidth = 20
	}
	if chatHeight < 5 {
		chatHeight = 5
	}
	m.chatVP = viewport.New(chatWidth, chatHeight)
	m.input.SetWidth(m.width - 8)
	m.help.SetWidth(m.width)
}

func (m *MainModel) refreshTranscript() {
	if !m.ready {
		return
	}
	m.chatVP.SetContent(m.renderTranscript(m.chatVP.Width))
}

func (m *MainModel) renderTranscript(width int) string {
	t := m.theme
	msgs := m.conv.Transcript()

	if len(msgs) == 0 && !m.sending {
		hint := "Start a conversation by typing a message below"
		if m.mode == app.ModeOCR {
			hint = "Paste up to 4 image paths, then type a prompt and press Enter."
		}
		return t.Welcome.Render("Welcome to Conversa") + "\n" + t.Welcome.Render(hint)
	}

	var b strings.Builder
	for _, msg := range msgs {
		if msg.Sender == app.SenderUser {
			b.WriteString(t.RoleYou.Render("You") + "\n")
			b.WriteString(t.BubbleUser.Render(msg.Text) + "\n")
		} else {
			b.WriteString(t.RoleBot.Render("Conversa") + "\n")
			if strings.HasPrefix(msg.Text, "❌") {
				b.WriteString(t.ErrorText.Render(msg.Text) + "\n")
			} else {
				b.WriteString(m.markdown.Render(msg.Text, width) + "\n")
			}
		}
		for _, img := range msg.Images {
			b.WriteString(t.Footer.Render("🖼 "+img) + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *MainModel) View() string {
	if !m.ready {
		return "Loading…"
	}
	t := m.theme

	title := "New chat"
	if sess, ok := m.store.Get(m.conv.SessionID()); ok {
		title = sess.DisplayTitle()
	}
	top := lipgloss.JoinHorizontal(lipgloss.Center,
		t.TopBarTitle.Render(" Conversa "),
		t.ModePill.Render(m.mode.Label()),
		t.TopBar.Render("  "+title),
	)
	if q := m.queueLabels(); q != "" {
		top = lipgloss.JoinHorizontal(lipgloss.Center, top, t.TopBar.Render("  "+q))
	}

	if src := m.conv.Zoomed(); src != "" {
		box := t.PaneFocused.Width(m.width - 4).Height(m.height - 6).Render(
			t.TopBarTitle.Render("Image") + "\n\n" + src + "\n\n" +
				t.Footer.Render("s save  ·  esc close"))
		return top + "\n" + box
	}

	sbw := m.sidebarWidth()
	sidebarPane := t.Pane
	chatPane := t.PaneFocused
	if m.focus == focusSidebar {
		sidebarPane = t.PaneFocused
		chatPane = t.Pane
	}
	sidebar := sidebarPane.Width(sbw).Height(m.chatVP.Height).Render(
		m.renderSidebar(sbw, m.chatVP.Height))
	chat := chatPane.Width(m.chatVP.Width + 2).Height(m.chatVP.Height).Render(m.chatVP.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chat)

	inputBox := t.InputBox
	if m.focus == focusInput {
		inputBox = t.InputBoxF
	}
	input := inputBox.Width(m.width - 4).Render(m.input.View())

	footer := t.Footer.Render(m.help.View())
	if m.sending {
		footer = t.Spinner.Render(spinnerFrames[m.spinnerPos]) + " " + t.Footer.Render("Working…")
	} else if m.status != "" {
		footer = t.Footer.Render(m.status)
	}

	return strings.Join([]string{top, body, input, footer}, "\n")
}
