package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"conversa/internal/app"
)

// Options configures a TUI run. Zero values fall back to the config file and
// the persisted UI state.
type Options struct {
	ServerURL string
	Mode      string
	SessionID string
	NoColor   bool
}

// Run boots the full-screen client and blocks until the user quits.
func Run(opts Options) error {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}
	if opts.Mode != "" {
		if _, ok := app.ParseMode(opts.Mode); !ok {
			return fmt.Errorf("unknown mode %q", opts.Mode)
		}
		cfg.DefaultMode = opts.Mode
	}

	logger, closeLog := app.OpenLogFile()
	defer closeLog()

	statePath := app.DefaultStatePath()
	state, _ := app.LoadUIState(statePath)
	if opts.Mode != "" {
		state.LastMode = opts.Mode
	}
	if opts.SessionID != "" {
		state.LastSessionID = opts.SessionID
	}
	if opts.NoColor {
		os.Setenv("CONVERSA_NO_COLOR", "1")
	}

	client := app.NewClient(cfg.ServerURL, logger)
	model := NewMainModel(client, logger, cfg, state, statePath)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
