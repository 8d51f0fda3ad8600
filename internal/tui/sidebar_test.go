package tui

import (
	"io"
	"strings"
	"testing"

	"conversa/internal/app"
)

func newTestModel(t *testing.T) *MainModel {
	t.Helper()
	logger := app.NewLogger(io.Discard)
	client := app.NewClient("http://127.0.0.1:1", logger)
	m := &MainModel{
		client: client,
		store:  app.NewSessionStore(),
		conv:   app.NewController(client, logger, app.ModeRegular),
		logger: logger,
		mode:   app.ModeRegular,
		theme:  ThemeFor("light"),
		help:   newHelpModel(),
	}
	t.Cleanup(m.store.Close)
	return m
}

func TestTypewriterAdvance(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	if cmd := m.startTypewriter("s1", "Hi"); cmd == nil {
		t.Fatal("startTypewriter returned no tick")
	}
	if m.typer == nil || string(m.typer.title) != "Hi" {
		t.Fatalf("typer = %+v, want title %q", m.typer, "Hi")
	}

	// Two runes, then the hold tick, then done.
	for i := 1; i <= 2; i++ {
		if cmd := m.advanceTypewriter(); cmd == nil {
			t.Fatalf("advance %d returned no follow-up tick", i)
		}
		if m.typer.pos != i {
			t.Fatalf("pos = %d after advance %d", m.typer.pos, i)
		}
	}
	if cmd := m.advanceTypewriter(); cmd == nil {
		t.Fatal("hold phase returned no tick")
	}
	if !m.typer.holding {
		t.Fatal("typer should be holding after the title completes")
	}
	if cmd := m.advanceTypewriter(); cmd != nil {
		t.Fatal("final advance should stop ticking")
	}
	if m.typer != nil {
		t.Fatal("typer should be cleared when the animation ends")
	}
}

func TestTypewriterReplaced(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.startTypewriter("s1", "First")
	m.advanceTypewriter()
	m.startTypewriter("s1", "Second")

	if got := string(m.typer.title); got != "Second" {
		t.Fatalf("typer title = %q, want %q", got, "Second")
	}
	if m.typer.pos != 0 {
		t.Fatalf("typer pos = %d, want a fresh animation", m.typer.pos)
	}
}

func TestSidebarEntriesFilterByMode(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.store.Replace([]app.Session{
		{ID: "r1", Title: "Chat one", Mode: app.ModeRegular},
		{ID: "o1", Title: "Scan", Mode: app.ModeOCR},
		{ID: "r2", Title: "Chat two", Mode: app.ModeRegular},
	})

	entries := m.sidebarEntries()
	if len(entries) != 2 {
		t.Fatalf("sidebarEntries() = %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Mode != app.ModeRegular {
			t.Fatalf("sidebarEntries() leaked mode %q", e.Mode)
		}
	}
}

func TestSelectedSession(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	if _, ok := m.selectedSession(); ok {
		t.Fatal("selectedSession() on empty store should report not ok")
	}

	m.store.Replace([]app.Session{
		{ID: "a", Title: "Alpha", Mode: app.ModeRegular},
		{ID: "b", Title: "Beta", Mode: app.ModeRegular},
	})
	m.sidebarSel = 1
	sess, ok := m.selectedSession()
	if !ok || sess.ID != "b" {
		t.Fatalf("selectedSession() = (%+v, %v), want id b", sess, ok)
	}

	m.sidebarSel = 99
	if _, ok := m.selectedSession(); ok {
		t.Fatal("selectedSession() out of range should report not ok")
	}
}

func TestRenderSidebarEmpty(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	out := m.renderSidebar(30, 10)
	if !strings.Contains(out, "No chats yet") {
		t.Fatalf("renderSidebar(empty) = %q, want the empty hint", out)
	}
}

func TestRenderSidebarShowsPartialTitle(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.store.Replace([]app.Session{{ID: "a", Title: "Holidays", Mode: app.ModeRegular}})

	m.startTypewriter("a", "Holidays")
	m.advanceTypewriter()
	m.advanceTypewriter()
	m.advanceTypewriter()

	out := m.renderSidebar(30, 10)
	if !strings.Contains(out, "Hol▌") {
		t.Fatalf("renderSidebar() = %q, want partial title with cursor", out)
	}
	if strings.Contains(out, "Holidays") {
		t.Fatalf("renderSidebar() = %q, full title should not show mid-animation", out)
	}
}

func TestRenderSidebarTruncatesLongTitles(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	long := strings.Repeat("x", 80)
	m.store.Replace([]app.Session{{ID: "a", Title: long, Mode: app.ModeRegular}})

	out := m.renderSidebar(20, 10)
	if strings.Contains(out, long) {
		t.Fatal("renderSidebar() should truncate long titles")
	}
	if !strings.Contains(out, "…") {
		t.Fatalf("renderSidebar() = %q, want a truncation tail", out)
	}
}
