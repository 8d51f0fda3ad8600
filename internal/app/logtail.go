package app

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLogPath is where OpenLogFile writes.
func DefaultLogPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "conversa", "conversa.log")
}

// ReadRecentErrors returns the last error-level entries from a JSON-lines log
// file. Malformed lines are skipped.
func ReadRecentErrors(path string, limit int) ([]LogEvent, error) {
	if limit <= 0 {
		limit = 40
	}
	if limit > 500 {
		limit = 500
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var events []LogEvent
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ev LogEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(ev.Level)) != "error" {
			continue
		}

		events = append(events, ev)
		if len(events) > limit*5 {
			events = events[len(events)-limit*2:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
