package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Board.Channel != "task-board-channel" {
		t.Fatalf("default channel: %q", cfg.Board.Channel)
	}
	if cfg.Board.Debounce != 600*time.Millisecond {
		t.Fatalf("default debounce: %v", cfg.Board.Debounce)
	}
	if cfg.Generator.Model != "llama3-8b-8192" {
		t.Fatalf("default model: %q", cfg.Generator.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Relay.RetainEntries != Default().Relay.RetainEntries {
		t.Fatalf("retain entries: %d", cfg.Relay.RetainEntries)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "taskboard.json")
	data := []byte(`{"board":{"channel":"team-a","debounce":"250ms"},"transport":{"kind":"redis"},"relay":{"retain_entries":64}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Board.Channel != "team-a" {
		t.Fatalf("expected team-a, got %q", cfg.Board.Channel)
	}
	if cfg.Board.Debounce != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", cfg.Board.Debounce)
	}
	if cfg.Transport.Kind != TransportRedis {
		t.Fatalf("expected redis transport")
	}
	if cfg.Relay.RetainEntries != 64 {
		t.Fatalf("expected 64")
	}
	if cfg.Generator.Model != Default().Generator.Model {
		t.Fatalf("unset keys should keep defaults")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "taskboard.yaml")
	data := []byte("generator:\n  model: mixtral\n  temperature: 0.2\nlog:\n  level: debug\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Generator.Model != "mixtral" || cfg.Generator.Temperature != 0.2 {
		t.Fatalf("generator: %+v", cfg.Generator)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level: %q", cfg.Log.Level)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TASKBOARD_BOARD_CHANNEL", "staging")
	t.Setenv("TASKBOARD_BOARD_DEBOUNCE", "1s")
	t.Setenv("TASKBOARD_RELAY_RETAIN_ENTRIES", "24")
	t.Setenv("TASKBOARD_GENERATOR_API_KEY", "k")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Board.Channel != "staging" {
		t.Fatalf("env override name")
	}
	if cfg.Board.Debounce != time.Second {
		t.Fatalf("env override debounce: %v", cfg.Board.Debounce)
	}
	if cfg.Relay.RetainEntries != 24 {
		t.Fatalf("env override retain entries")
	}
	if cfg.Generator.APIKey != "k" {
		t.Fatalf("env override api key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty channel", func(c *Config) { c.Board.Channel = " " }},
		{"zero debounce", func(c *Config) { c.Board.Debounce = 0 }},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }},
		{"negative retention", func(c *Config) { c.Relay.RetainEntries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
