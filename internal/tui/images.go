package tui

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxQueuedImages = 4

// queueImagePaths adds local image files to the OCR send queue, capped at
// four. Returns how many were accepted and a human-readable reason when some
// were not.
func (m *MainModel) queueImagePaths(paths []string) (added int, reason string) {
	for _, p := range paths {
		if len(m.imageQueue) >= maxQueuedImages {
			return added, fmt.Sprintf("Max %d images", maxQueuedImages)
		}
		if !isExistingImageFile(p) {
			return added, fmt.Sprintf("Not an image file: %s", p)
		}
		m.imageQueue = append(m.imageQueue, p)
		added++
	}
	return added, ""
}

func (m *MainModel) clearImageQueue() {
	m.imageQueue = nil
}

// queueLabels renders the pending queue for the top bar, e.g.
// "[receipt.png] [invoice.jpg]".
func (m *MainModel) queueLabels() string {
	if len(m.imageQueue) == 0 {
		return ""
	}
	labels := make([]string, 0, len(m.imageQueue))
	for _, p := range m.imageQueue {
		labels = append(labels, "["+filepath.Base(p)+"]")
	}
	return strings.Join(labels, " ")
}

// tryConsumeImagePaste detects input that is purely a list of existing image
// file paths (drag+drop into a terminal pastes these) and queues it instead of
// sending it as text. Only available in OCR mode.
func (m *MainModel) tryConsumeImagePaste(text string) bool {
	paths := extractImagePaths(text)
	if len(paths) == 0 {
		return false
	}
	m.queueImagePaths(paths)
	return true
}

// extractImagePaths returns the pasted tokens as image paths, or nil unless
// every token resolves to an existing image file.
func extractImagePaths(pasted string) []string {
	tokens := splitShellLikeFields(pasted)
	if len(tokens) == 0 {
		return nil
	}

	paths := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		p, ok := normalizePastedPath(tok)
		if !ok || !isExistingImageFile(p) {
			return nil
		}
		paths = append(paths, p)
	}
	return paths
}

func normalizePastedPath(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	// Terminals commonly emit file:// URIs on drag+drop.
	if strings.HasPrefix(token, "file://") {
		u, err := url.Parse(token)
		if err != nil {
			return "", false
		}
		path := u.Path
		if path == "" && u.Opaque != "" {
			path = u.Opaque
		}
		if path == "" {
			return "", false
		}
		if decoded, err := url.PathUnescape(path); err == nil {
			path = decoded
		}
		token = path
	}

	if strings.HasPrefix(token, "~/") || token == "~" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			if token == "~" {
				token = home
			} else {
				token = filepath.Join(home, token[2:])
			}
		}
	}

	return filepath.Clean(token), true
}

func isExistingImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		// matches what the backend accepts
	default:
		return false
	}

	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return st.Mode().IsRegular()
}

func splitShellLikeFields(s string) []string {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n"))
	if s == "" {
		return nil
	}

	var out []string
	var b strings.Builder

	inSingle := false
	inDouble := false
	escaped := false

	flush := func() {
		if b.Len() == 0 {
			return
		}
		out = append(out, b.String())
		b.Reset()
	}

	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' && !inSingle {
			escaped = true
			continue
		}
		if r == '\'' && !inDouble {
			inSingle = !inSingle
			continue
		}
		if r == '"' && !inSingle {
			inDouble = !inDouble
			continue
		}
		if unicode.IsSpace(r) && !inSingle && !inDouble {
			flush()
			continue
		}
		b.WriteRune(r)
	}

	if escaped {
		b.WriteRune('\\')
	}
	flush()

	return out
}
