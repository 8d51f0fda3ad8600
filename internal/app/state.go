package app

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UIState is the small key-value blob that survives restarts: the last open
// session, the last mode, and the theme. No schema versioning.
type UIState struct {
	LastSessionID string `yaml:"last_session_id,omitempty"`
	LastMode      string `yaml:"last_mode,omitempty"`
	Theme         string `yaml:"theme,omitempty"`
}

func LoadUIState(path string) (UIState, error) {
	var st UIState
	if path == "" {
		return st, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		// A corrupt state file is not worth failing startup over.
		return UIState{}, nil
	}
	return st, nil
}

func SaveUIState(st UIState, path string) error {
	if path == "" {
		return errors.New("no path provided for state")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultStatePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "conversa", "state.yml")
}
