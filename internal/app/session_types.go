package app

// Session is one sidebar entry: a mode-tagged conversation thread.
type Session struct {
	ID    string `json:"session_id"`
	Title string `json:"title"`
	Mode  Mode   `json:"mode"`

	// JustRenamed marks a freshly retitled session so the sidebar can run its
	// typewriter animation. It auto-clears after a short window.
	JustRenamed bool `json:"-"`
}

// DisplayTitle is the title as shown in the sidebar: never empty, clamped.
func (s Session) DisplayTitle() string {
	return ClampTitle(s.Title)
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single transcript bubble. Images are either local file paths
// (optimistic, before upload completes) or absolute server URLs.
type Message struct {
	ID     string
	Sender Sender
	Text   string
	Images []string
}

// HistoryRow is one persisted message as returned by the history endpoint.
type HistoryRow struct {
	Role        string       `json:"role"` // user|assistant
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	URL string `json:"url"`
}
