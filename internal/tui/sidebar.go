package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/truncate"

	"conversa/internal/app"
)

const (
	// typeInterval matches the per-rune cadence of the title animation;
	// typeHold keeps the cursor visible briefly once the title is complete.
	typeInterval = 55 * time.Millisecond
	typeHold     = 400 * time.Millisecond
)

type typeTickMsg struct{}

// typewriter animates a freshly renamed session title, one rune per tick.
// Starting a new animation replaces a running one (last rename wins).
type typewriter struct {
	sessionID string
	title     []rune
	pos       int
	holding   bool
}

func (m *MainModel) startTypewriter(id, title string) tea.Cmd {
	m.typer = &typewriter{sessionID: id, title: []rune(app.ClampTitle(title))}
	return typeTick(typeInterval)
}

func typeTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return typeTickMsg{} })
}

func (m *MainModel) advanceTypewriter() tea.Cmd {
	tw := m.typer
	if tw == nil {
		return nil
	}
	if tw.holding {
		m.typer = nil
		return nil
	}
	if tw.pos < len(tw.title) {
		tw.pos++
		return typeTick(typeInterval)
	}
	tw.holding = true
	return typeTick(typeHold)
}

// sidebarEntries returns the sessions visible for the current mode.
func (m *MainModel) sidebarEntries() []app.Session {
	return m.store.ListByMode(m.mode)
}

func (m *MainModel) renderSidebar(width, height int) string {
	t := m.theme
	entries := m.sidebarEntries()

	var b strings.Builder
	b.WriteString(t.PaneTitle.Render("Chats") + "\n")

	if len(entries) == 0 {
		b.WriteString(t.Welcome.Render("No chats yet") + "\n")
		b.WriteString(t.Welcome.Render("Start a new conversation") + "\n")
		return b.String()
	}

	if m.sidebarSel >= len(entries) {
		m.sidebarSel = len(entries) - 1
	}
	if m.sidebarSel < 0 {
		m.sidebarSel = 0
	}

	activeID := m.conv.SessionID()
	maxRows := height - 2
	for i, s := range entries {
		if maxRows > 0 && i >= maxRows {
			break
		}

		title := s.DisplayTitle()
		if tw := m.typer; tw != nil && tw.sessionID == s.ID {
			title = string(tw.title[:tw.pos]) + "▌"
		}
		title = truncate.StringWithTail(title, uint(width-4), "…")

		cursor := "  "
		style := t.SessionItem
		if s.ID == activeID {
			style = t.SessionActive
		}
		if m.focus == focusSidebar && i == m.sidebarSel {
			cursor = t.SessionCursor.Render("▸ ")
		}

		if m.renaming && i == m.sidebarSel {
			b.WriteString(cursor + m.renameInput.View() + "\n")
			continue
		}
		b.WriteString(cursor + style.Render(title) + "\n")
	}
	return b.String()
}

// selectedSession returns the sidebar entry under the cursor.
func (m *MainModel) selectedSession() (app.Session, bool) {
	entries := m.sidebarEntries()
	if len(entries) == 0 || m.sidebarSel < 0 || m.sidebarSel >= len(entries) {
		return app.Session{}, false
	}
	return entries[m.sidebarSel], true
}
