package app

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL   string `yaml:"server_url"`
	DefaultMode string `yaml:"mode"`
	Theme       string `yaml:"theme"`
	MaxImages   int    `yaml:"max_images"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:   "http://localhost:8000",
		DefaultMode: string(ModeRegular),
		Theme:       "light",
		MaxImages:   4,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if env := os.Getenv("CONVERSA_SERVER"); env != "" {
		cfg.ServerURL = env
	}
	if env := os.Getenv("CONVERSA_THEME"); env != "" {
		cfg.Theme = env
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8000"
	}
	if _, ok := ParseMode(cfg.DefaultMode); !ok {
		cfg.DefaultMode = string(ModeRegular)
	}
	if cfg.Theme != "light" && cfg.Theme != "dark" {
		cfg.Theme = "light"
	}
	if cfg.MaxImages <= 0 || cfg.MaxImages > 4 {
		cfg.MaxImages = 4
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "conversa", "config.yml")
}
