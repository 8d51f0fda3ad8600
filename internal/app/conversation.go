package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	errorGlyph = "❌ "
	busyNotice = "⏳ The model is busy. Retrying once…"
)

type SessionEventKind int

const (
	// SessionCreated: the server assigned a new session id to this conversation.
	SessionCreated SessionEventKind = iota
	// SessionTitled: the server confirmed or set a title for a session.
	SessionTitled
)

// SessionEvent is the single authoritative notification the shell uses to
// update the sidebar, the active route, and persisted state together.
type SessionEvent struct {
	Kind      SessionEventKind
	SessionID string
	Title     string
	Mode      Mode
}

// Controller owns the active conversation: the transcript, the in-flight send
// guard, and the reconciliation of server-assigned session ids. Methods are
// safe to call from bubbletea command goroutines.
type Controller struct {
	client *Client
	logger *Logger

	mu         sync.Mutex
	mode       Mode
	sessionID  string
	transcript []Message

	// lastQuestion remembers the effective user question so replies can be
	// normalized against its comparative-ness.
	lastQuestion string
	inFlight     bool
	historyGen   uint64
	zoomed       string

	// sleep is swappable so retry tests do not wait real seconds.
	sleep func(context.Context, time.Duration)

	onSession func(SessionEvent)
}

func NewController(client *Client, logger *Logger, mode Mode) *Controller {
	return &Controller{
		client: client,
		logger: logger,
		mode:   mode,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SetOnSession registers the shell callback for session lifecycle events. It
// is invoked without the controller lock held.
func (c *Controller) SetOnSession(fn func(SessionEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSession = fn
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Transcript returns a copy of the current messages in append order.
func (c *Controller) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.transcript...)
}

// SetSession switches the active session id, wholesale-replacing the
// transcript and invalidating any in-flight history load. A blank id means
// the blank route. Reports whether the id actually changed.
func (c *Controller) SetSession(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.sessionID {
		return false
	}
	c.sessionID = id
	c.transcript = nil
	c.historyGen++
	return true
}

// SetMode switches the operating mode: transcript cleared, zoom dismissed,
// comparative memo reset.
func (c *Controller) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == c.mode {
		return
	}
	c.mode = mode
	c.sessionID = ""
	c.transcript = nil
	c.lastQuestion = ""
	c.zoomed = ""
	c.historyGen++
}

func (c *Controller) SetZoom(src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoomed = src
}

func (c *Controller) Zoomed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoomed
}

// SendText runs the plain chat flow: optimistic user bubble, table hint for
// comparative questions, one bounded retry on rate limiting. A send while
// another is in flight is dropped. Reports whether the send was issued.
func (c *Controller) SendText(ctx context.Context, raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.lastQuestion = raw
	c.transcript = append(c.transcript, Message{ID: uuid.NewString(), Sender: SenderUser, Text: raw})
	sid := c.sessionID
	mode := c.mode
	c.mu.Unlock()

	defer c.clearInFlight()

	req := ChatRequest{
		Message:        WithTableHint(raw),
		Mode:           mode,
		SessionID:      sid,
		IdempotencyKey: IdempotencyKey(sid, raw, time.Now()),
	}

	resp, err := c.client.Chat(ctx, req)
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		c.appendBot(busyNotice, nil)
		c.sleep(ctx, rl.RetryAfter)
		resp, err = c.client.Chat(ctx, req)
	}
	if err != nil {
		c.appendBot(errorGlyph+serverErrorText(err, "Server error"), nil)
		return true
	}

	c.adoptSession(resp.SessionID, resp.Title, mode)
	c.appendBot(NormalizeTable(resp.Text(), LooksComparative(raw)), nil)
	return true
}

// AskOCR runs the text-only OCR question flow. An empty prompt falls back to
// the default extraction question, which is sent but never shown as typed.
func (c *Controller) AskOCR(ctx context.Context, raw string) bool {
	raw = strings.TrimSpace(raw)
	effective := raw
	if effective == "" {
		effective = DefaultOCRQuestion
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.lastQuestion = effective
	if raw != "" {
		c.transcript = append(c.transcript, Message{ID: uuid.NewString(), Sender: SenderUser, Text: raw})
	}
	sid := c.sessionID
	c.mu.Unlock()

	defer c.clearInFlight()

	resp, err := c.client.AskOCR(ctx, sid, WithTableHint(effective))
	if err != nil {
		c.appendBot(errorGlyph+serverErrorText(err, "OCR-QA server error"), nil)
		return true
	}

	c.adoptSession(resp.SessionID, "", ModeOCR)
	c.appendBot(NormalizeTable(resp.Answer, LooksComparative(effective)), nil)
	return true
}

// SendImages runs the image-QA flow: optimistic user bubble carrying local
// file paths, swapped for the server's persisted URLs once the upload lands.
// Image replies are rendered as-is, never table-normalized. There is no retry
// on rate limiting here.
func (c *Controller) SendImages(ctx context.Context, raw string, paths []string) bool {
	if len(paths) == 0 || len(paths) > 4 {
		return false
	}
	message := strings.TrimSpace(raw)
	if message == "" {
		message = "Analyze these images"
	}

	c.mu.Lock()
	if c.inFlight || c.mode != ModeOCR {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.lastQuestion = message
	optimisticID := uuid.NewString()
	c.transcript = append(c.transcript, Message{
		ID:     optimisticID,
		Sender: SenderUser,
		Text:   message,
		Images: append([]string(nil), paths...),
	})
	sid := c.sessionID
	c.mu.Unlock()

	defer c.clearInFlight()

	resp, err := c.client.ChatWithImages(ctx, message, sid, ModeOCR, paths)
	if err != nil {
		c.appendBot(errorGlyph+serverErrorText(err, "Server error"), nil)
		return true
	}

	c.adoptSession(resp.SessionID, resp.Title, ModeOCR)

	// Swap the optimistic local paths for the persisted server URLs.
	saved := make([]string, 0, len(resp.Attachments))
	for _, a := range resp.Attachments {
		saved = append(saved, c.client.AbsURL(a.URL))
	}
	c.mu.Lock()
	for i := len(c.transcript) - 1; i >= 0; i-- {
		if c.transcript[i].ID == optimisticID {
			c.transcript[i].Images = saved
			break
		}
	}
	c.mu.Unlock()

	c.appendBot(resp.Response, nil)
	return true
}

// LoadHistory fetches and replays a session's stored messages. A load that is
// superseded by a newer session switch discards its result on arrival.
func (c *Controller) LoadHistory(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	gen := c.historyGen
	mode := c.mode
	c.mu.Unlock()

	rows, err := c.client.History(ctx, sessionID, mode)
	if err != nil {
		return err
	}

	replayed := c.replayRows(rows)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.historyGen || sessionID != c.sessionID {
		// Stale: the active session moved on while this load was in flight.
		return nil
	}
	c.transcript = replayed
	return nil
}

// replayRows maps stored rows back into display messages: the table hint is
// stripped from user rows, and assistant rows are re-normalized against the
// nearest preceding user question.
func (c *Controller) replayRows(rows []HistoryRow) []Message {
	out := make([]Message, 0, len(rows))
	for i, row := range rows {
		isUser := row.Role == "user"

		text := row.Content
		if isUser {
			text = StripTableHint(text)
		} else {
			prevQ := ""
			for j := i - 1; j >= 0; j-- {
				if rows[j].Role == "user" {
					prevQ = StripTableHint(rows[j].Content)
					break
				}
			}
			text = NormalizeTable(text, LooksComparative(prevQ))
		}

		var images []string
		for _, a := range row.Attachments {
			images = append(images, c.client.AbsURL(a.URL))
		}

		sender := SenderBot
		if isUser {
			sender = SenderUser
		}
		out = append(out, Message{ID: uuid.NewString(), Sender: sender, Text: text, Images: images})
	}
	return out
}

// adoptSession reconciles a server-assigned session id and title back into the
// controller and notifies the shell once per change.
func (c *Controller) adoptSession(newID, title string, mode Mode) {
	var events []SessionEvent

	c.mu.Lock()
	if newID != "" && newID != c.sessionID {
		c.sessionID = newID
		events = append(events, SessionEvent{
			Kind:      SessionCreated,
			SessionID: newID,
			Title:     ClampTitle(title),
			Mode:      mode,
		})
	}
	if title != "" {
		events = append(events, SessionEvent{
			Kind:      SessionTitled,
			SessionID: c.sessionID,
			Title:     title,
			Mode:      mode,
		})
	}
	fn := c.onSession
	c.mu.Unlock()

	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}

func (c *Controller) appendBot(text string, images []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, Message{ID: uuid.NewString(), Sender: SenderBot, Text: text, Images: images})
}

func (c *Controller) clearInFlight() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// serverErrorText prefers the backend's own error message, falling back to a
// generic label for transport failures.
func serverErrorText(err error, fallback string) string {
	var api *APIError
	if errors.As(err, &api) && api.Message != "" {
		return api.Message
	}
	return fallback
}
