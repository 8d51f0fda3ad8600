package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestController(t *testing.T, handler http.Handler, mode Mode) (*Controller, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewController(NewClient(srv.URL, nil), nil, mode)
	c.sleep = func(context.Context, time.Duration) {}
	return c, srv
}

func TestSendTextAdoptsNewSession(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1", Title: "Greetings", Reply: "hello back"})
	})
	c, _ := newTestController(t, handler, ModeRegular)

	var mu sync.Mutex
	var events []SessionEvent
	c.SetOnSession(func(ev SessionEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	if !c.SendText(context.Background(), "hello") {
		t.Fatalf("SendText reported dropped")
	}

	if c.SessionID() != "s1" {
		t.Fatalf("session id = %q, want s1", c.SessionID())
	}
	msgs := c.Transcript()
	if len(msgs) != 2 || msgs[0].Sender != SenderUser || msgs[1].Sender != SenderBot {
		t.Fatalf("transcript = %+v", msgs)
	}
	if msgs[1].Text != "hello back" {
		t.Fatalf("bot text = %q", msgs[1].Text)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0].Kind != SessionCreated || events[1].Kind != SessionTitled {
		t.Fatalf("events = %+v", events)
	}
	if events[0].SessionID != "s1" || events[1].Title != "Greetings" {
		t.Fatalf("events = %+v", events)
	}
}

func TestSendTextComparativeRequestAndReply(t *testing.T) {
	t.Parallel()

	var sentMessage string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		sentMessage = body["message"]
		// Pipe rows with no separator: the controller must synthesize one.
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1", Reply: "| A | B |\n| 1 | 2 |"})
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SendText(context.Background(), "go vs rust")

	if !strings.Contains(sentMessage, TableHint) {
		t.Fatalf("outgoing message missing table hint: %q", sentMessage)
	}
	msgs := c.Transcript()
	// The optimistic user bubble shows only what was typed.
	if msgs[0].Text != "go vs rust" {
		t.Fatalf("user bubble = %q", msgs[0].Text)
	}
	want := "| A | B |\n|---|---|\n| 1 | 2 |"
	if msgs[1].Text != want {
		t.Fatalf("bot bubble = %q, want %q", msgs[1].Text, want)
	}
}

func TestSendTextInFlightGuard(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var requests int
	var mu sync.Mutex

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		first := requests == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1", Reply: "ok"})
	})
	c, _ := newTestController(t, handler, ModeRegular)

	done := make(chan bool)
	go func() { done <- c.SendText(context.Background(), "first") }()
	<-started

	if c.SendText(context.Background(), "second") {
		t.Fatalf("second send was not dropped while one is in flight")
	}
	close(release)
	if !<-done {
		t.Fatalf("first send failed")
	}

	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Fatalf("server saw %d requests, want 1", requests)
	}
	if got := len(c.Transcript()); got != 2 {
		t.Fatalf("transcript has %d messages, want 2 (first send only)", got)
	}
}

func TestSendTextRetriesOnceOn429(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var keys []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		n := len(keys)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"retry_after": 0.01}`))
			return
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1", Reply: "recovered"})
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SendText(context.Background(), "hello")

	mu.Lock()
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Fatalf("idempotency keys = %v, want two identical non-empty keys", keys)
	}
	mu.Unlock()

	msgs := c.Transcript()
	if len(msgs) != 3 {
		t.Fatalf("transcript = %+v", msgs)
	}
	if !strings.Contains(msgs[1].Text, "busy") {
		t.Fatalf("missing busy notice: %q", msgs[1].Text)
	}
	if msgs[2].Text != "recovered" {
		t.Fatalf("bot text = %q", msgs[2].Text)
	}
}

func TestSendTextSecond429SurfacesError(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"retry_after": 0.01}`))
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SendText(context.Background(), "hello")

	mu.Lock()
	if requests != 2 {
		t.Fatalf("server saw %d requests, want exactly 2 (one retry)", requests)
	}
	mu.Unlock()

	msgs := c.Transcript()
	last := msgs[len(msgs)-1]
	if last.Text != errorGlyph+"Server error" {
		t.Fatalf("final bubble = %q", last.Text)
	}
}

func TestSendTextServerErrorBubble(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model exploded"}`))
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SendText(context.Background(), "hello")

	msgs := c.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("transcript = %+v", msgs)
	}
	if msgs[1].Text != errorGlyph+"model exploded" {
		t.Fatalf("error bubble = %q", msgs[1].Text)
	}
	// The controller survives: the next send still goes out.
	if c.InFlight() {
		t.Fatalf("in-flight guard stuck after failure")
	}
}

func TestLoadHistoryReplaysAndNormalizes(t *testing.T) {
	t.Parallel()

	rows := []HistoryRow{
		{Role: "user", Content: "go vs rust" + TableHint},
		{Role: "assistant", Content: "Sure!\n| A | B |\n| --- | --- |\n| 1 | 2 |\nThanks"},
		{Role: "user", Content: "thanks"},
		{Role: "assistant", Content: "welcome", Attachments: []Attachment{{URL: "/media/pic.png"}}},
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]HistoryRow{"history": rows})
	})
	c, srv := newTestController(t, handler, ModeRegular)

	c.SetSession("s1")
	if err := c.LoadHistory(context.Background(), "s1"); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}

	msgs := c.Transcript()
	if len(msgs) != 4 {
		t.Fatalf("transcript = %+v", msgs)
	}
	if msgs[0].Text != "go vs rust" {
		t.Fatalf("hint not stripped from user row: %q", msgs[0].Text)
	}
	if msgs[1].Text != "| A | B |\n| --- | --- |\n| 1 | 2 |" {
		t.Fatalf("assistant row not re-normalized: %q", msgs[1].Text)
	}
	if msgs[3].Text != "welcome" {
		t.Fatalf("non-comparative assistant row changed: %q", msgs[3].Text)
	}
	if len(msgs[3].Images) != 1 || msgs[3].Images[0] != srv.URL+"/media/pic.png" {
		t.Fatalf("attachment not absolutized: %+v", msgs[3].Images)
	}
}

func TestLoadHistoryStaleResultDiscarded(t *testing.T) {
	t.Parallel()

	reachedA := make(chan struct{})
	releaseA := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("session_id")
		if sid == "a" {
			close(reachedA)
			<-releaseA
			_, _ = w.Write([]byte(`{"history": [{"role": "user", "content": "from a"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"history": [{"role": "user", "content": "from b"}]}`))
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SetSession("a")
	done := make(chan error)
	go func() { done <- c.LoadHistory(context.Background(), "a") }()
	<-reachedA

	// Switch away while the first load is still in flight.
	c.SetSession("b")
	if err := c.LoadHistory(context.Background(), "b"); err != nil {
		t.Fatalf("LoadHistory(b): %v", err)
	}

	close(releaseA)
	if err := <-done; err != nil {
		t.Fatalf("LoadHistory(a): %v", err)
	}

	msgs := c.Transcript()
	if len(msgs) != 1 || msgs[0].Text != "from b" {
		t.Fatalf("stale history leaked into transcript: %+v", msgs)
	}
}

func TestSendImagesSwapsLocalRefsForServerURLs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := filepath.Join(dir, "receipt.png")
	if err := os.WriteFile(img, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		if got := r.FormValue("mode"); got != "ocr" {
			t.Errorf("mode = %q, want ocr", got)
		}
		if files := r.MultipartForm.File["images"]; len(files) != 1 {
			t.Errorf("got %d files, want 1", len(files))
		}
		_ = json.NewEncoder(w).Encode(ImageChatResponse{
			SessionID:   "s9",
			Title:       "Receipts",
			Response:    "| A | B |\n| 1 | 2 |",
			Attachments: []Attachment{{URL: "/media/receipt.png"}},
		})
	})
	c, srv := newTestController(t, handler, ModeOCR)

	if !c.SendImages(context.Background(), "compare these vs those", []string{img}) {
		t.Fatalf("SendImages reported dropped")
	}

	msgs := c.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("transcript = %+v", msgs)
	}
	if len(msgs[0].Images) != 1 || msgs[0].Images[0] != srv.URL+"/media/receipt.png" {
		t.Fatalf("local ref not swapped for server URL: %+v", msgs[0].Images)
	}
	// Image-QA replies are never table-normalized, even for comparative prompts.
	if msgs[1].Text != "| A | B |\n| 1 | 2 |" {
		t.Fatalf("image reply was normalized: %q", msgs[1].Text)
	}
	if c.SessionID() != "s9" {
		t.Fatalf("session id = %q, want s9", c.SessionID())
	}
}

func TestSendImagesGuards(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL.Path)
	})
	c, _ := newTestController(t, handler, ModeRegular)

	if c.SendImages(context.Background(), "x", []string{"a.png"}) {
		t.Fatalf("SendImages allowed outside ocr mode")
	}
	c.SetMode(ModeOCR)
	if c.SendImages(context.Background(), "x", nil) {
		t.Fatalf("SendImages allowed with empty queue")
	}
	if c.SendImages(context.Background(), "x", []string{"1", "2", "3", "4", "5"}) {
		t.Fatalf("SendImages allowed more than 4 files")
	}
}

func TestAskOCRDefaultQuestion(t *testing.T) {
	t.Parallel()

	var gotQuestion string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuestion = body["question"]
		_ = json.NewEncoder(w).Encode(OCRAnswer{SessionID: "s2", Answer: "summary here"})
	})
	c, _ := newTestController(t, handler, ModeOCR)

	c.AskOCR(context.Background(), "")

	if !strings.Contains(gotQuestion, DefaultOCRQuestion) {
		t.Fatalf("question = %q, want the default OCR question", gotQuestion)
	}
	msgs := c.Transcript()
	// No user bubble for the implicit default question.
	if len(msgs) != 1 || msgs[0].Sender != SenderBot || msgs[0].Text != "summary here" {
		t.Fatalf("transcript = %+v", msgs)
	}
	if c.SessionID() != "s2" {
		t.Fatalf("session id = %q, want s2", c.SessionID())
	}
}

func TestSetModeClearsConversation(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1", Reply: "ok"})
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SendText(context.Background(), "hello")
	c.SetZoom("http://example.com/pic.png")
	c.SetMode(ModeOCR)

	if len(c.Transcript()) != 0 {
		t.Fatalf("transcript not cleared on mode change")
	}
	if c.SessionID() != "" {
		t.Fatalf("session id survived mode change")
	}
	if c.Zoomed() != "" {
		t.Fatalf("zoom state survived mode change")
	}
}

func TestSetSessionResetsTranscript(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1", Reply: "ok"})
	})
	c, _ := newTestController(t, handler, ModeRegular)

	c.SendText(context.Background(), "hello")
	if !c.SetSession("other") {
		t.Fatalf("SetSession reported no change")
	}
	if len(c.Transcript()) != 0 {
		t.Fatalf("transcript survived session switch")
	}
	if c.SetSession("other") {
		t.Fatalf("SetSession to the same id should be a no-op")
	}
}
