package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "http://localhost:8000" || cfg.DefaultMode != "regular" || cfg.Theme != "light" || cfg.MaxImages != 4 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadConfigClampsBadValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yml")
	data := "server_url: http://example.com\nmode: bogus\ntheme: neon\nmax_images: 12\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "http://example.com" {
		t.Fatalf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.DefaultMode != "regular" || cfg.Theme != "light" || cfg.MaxImages != 4 {
		t.Fatalf("bad values not clamped: %+v", cfg)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CONVERSA_SERVER", "http://override:9000")
	t.Setenv("CONVERSA_THEME", "dark")

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("server_url: http://file:8000\n"), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "http://override:9000" || cfg.Theme != "dark" {
		t.Fatalf("env override ignored: %+v", cfg)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	want := Config{ServerURL: "http://example.com", DefaultMode: "ocr", Theme: "dark", MaxImages: 2}
	if err := SaveConfig(want, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestUIStateRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yml")
	want := UIState{LastSessionID: "s1", LastMode: "ocr", Theme: "dark"}
	if err := SaveUIState(want, path); err != nil {
		t.Fatalf("SaveUIState: %v", err)
	}
	got, err := LoadUIState(path)
	if err != nil {
		t.Fatalf("LoadUIState: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestUIStateMissingFile(t *testing.T) {
	t.Parallel()

	got, err := LoadUIState(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadUIState: %v", err)
	}
	if got != (UIState{}) {
		t.Fatalf("missing file state = %+v, want zero", got)
	}
}

func TestUIStateCorruptFileIsIgnored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yml")
	if err := os.WriteFile(path, []byte(":::: not yaml"), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}
	got, err := LoadUIState(path)
	if err != nil {
		t.Fatalf("LoadUIState: %v", err)
	}
	if got != (UIState{}) {
		t.Fatalf("corrupt state = %+v, want zero", got)
	}
}
