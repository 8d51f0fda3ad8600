package app

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadBytes is the client-side cap on a single OCR upload.
const MaxUploadBytes = 20 * 1024 * 1024

// APIError is any non-2xx answer from the backend, carrying the server's own
// error text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error: status %d", e.Status)
}

// RateLimitedError is a 429 with the server-suggested wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Client talks to the Conversa backend. A cookie jar keeps the auth session
// cookie across calls, mirroring the browser client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *Logger
}

func NewClient(baseURL string, logger *Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: 120 * time.Second, Jar: jar}

	// Skip TLS verification if CONVERSA_SKIP_TLS_VERIFY is set (for container
	// environments with self-signed certs).
	if os.Getenv("CONVERSA_SKIP_TLS_VERIFY") == "1" || os.Getenv("CONVERSA_SKIP_TLS_VERIFY") == "true" {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{BaseURL: baseURL, HTTP: httpClient, Logger: logger}
}

// AbsURL resolves a server-relative attachment path against the backend base.
func (c *Client) AbsURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.BaseURL + u
}

// IdempotencyKey derives the dedup token for a chat send from the session, the
// text, and a coarse (~4s) time bucket, so a rapid double-submit reuses the
// same key.
func IdempotencyKey(sessionID, text string, now time.Time) string {
	sid := sessionID
	if sid == "" {
		sid = "new"
	}
	return fmt.Sprintf("%s:%s:%d", sid, text, now.UnixMilli()>>12)
}

type ChatRequest struct {
	Message        string
	Mode           Mode
	SessionID      string
	IdempotencyKey string
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Response  string `json:"response,omitempty"`
}

// Text returns the reply body whichever field the backend used.
func (r *ChatResponse) Text() string {
	if r.Reply != "" {
		return r.Reply
	}
	return r.Response
}

type ImageChatResponse struct {
	SessionID   string       `json:"session_id"`
	Title       string       `json:"title,omitempty"`
	Response    string       `json:"response"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type OCRAnswer struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type OCRText struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (c *Client) ListSessions(ctx context.Context, mode Mode) ([]Session, error) {
	var out []Session
	q := url.Values{"mode": {string(mode)}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) NewSession(ctx context.Context, mode Mode) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	body := map[string]string{"mode": string(mode)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions/new/", body, nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *Client) RenameSession(ctx context.Context, id, title string) error {
	body := map[string]string{"title": title}
	return c.doJSON(ctx, http.MethodPut, "/api/sessions/"+url.PathEscape(id)+"/rename/", body, nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id)+"/delete/", nil, nil, nil)
}

func (c *Client) History(ctx context.Context, sessionID string, mode Mode) ([]HistoryRow, error) {
	var out struct {
		History []HistoryRow `json:"history"`
	}
	q := url.Values{"session_id": {sessionID}, "mode": {string(mode)}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/history/?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := map[string]string{
		"message": req.Message,
		"mode":    string(req.Mode),
	}
	if req.SessionID != "" {
		body["session_id"] = req.SessionID
	}
	headers := map[string]string{"Idempotency-Key": req.IdempotencyKey}

	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/", body, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AskOCR(ctx context.Context, sessionID, question string) (*OCRAnswer, error) {
	body := map[string]string{
		"question": question,
		"mode":     string(ModeOCR),
	}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	var out OCRAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/api/ocr-qa/", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatWithImages submits a prompt plus up to four local image files as one
// multipart request.
func (c *Client) ChatWithImages(ctx context.Context, message, sessionID string, mode Mode, paths []string) (*ImageChatResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("message", message); err != nil {
		return nil, err
	}
	if sessionID != "" {
		if err := w.WriteField("session_id", sessionID); err != nil {
			return nil, err
		}
	}
	if err := w.WriteField("mode", string(mode)); err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := appendFilePart(w, "images", p); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out ImageChatResponse
	if err := c.doMultipart(ctx, "/api/gemini-with-images/", &buf, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractText runs a single file through the OCR endpoint. Oversized files are
// rejected before any request goes out.
func (c *Client) ExtractText(ctx context.Context, path, sessionID string, mode Mode) (*OCRText, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > MaxUploadBytes {
		return nil, fmt.Errorf("file too large (max %dMB)", MaxUploadBytes/(1024*1024))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := appendFilePart(w, "file", path); err != nil {
		return nil, err
	}
	if sessionID != "" {
		if err := w.WriteField("session_id", sessionID); err != nil {
			return nil, err
		}
	}
	if err := w.WriteField("mode", string(mode)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out OCRText
	if err := c.doMultipart(ctx, "/api/ocr/", &buf, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveAttachment downloads an attachment into destDir, keeping the original
// filename. Returns the written path.
func (c *Client) SaveAttachment(ctx context.Context, src, destDir string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AbsURL(src), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode}
	}

	name := filepath.Base(strings.SplitN(src, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	dest := filepath.Join(destDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return dest, nil
}

func appendFilePart(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	return c.do(request, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, body io.Reader, contentType string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", contentType)
	return c.do(request, out)
}

func (c *Client) do(request *http.Request, out any) error {
	resp, err := c.HTTP.Do(request)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var rl struct {
			RetryAfter float64 `json:"retry_after"`
		}
		_ = json.Unmarshal(bodyBytes, &rl)
		wait := 2 * time.Second
		if rl.RetryAfter > 0 {
			wait = time.Duration(rl.RetryAfter * float64(time.Second))
		}
		return &RateLimitedError{RetryAfter: wait}
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if c.Logger != nil {
			c.Logger.Error("api error", map[string]interface{}{
				"path":   request.URL.Path,
				"status": resp.StatusCode,
			})
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("invalid api response format: %s", string(bodyBytes))
	}
	return nil
}
