package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".threadline")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host() != DefaultHost || cfg.Port() != DefaultPort {
		t.Errorf("server defaults not applied: %s:%d", cfg.Host(), cfg.Port())
	}
	if cfg.MinMessagesForSummary() != DefaultMinMessagesForSummary ||
		cfg.SummarizeEveryNMessages() != DefaultSummarizeEveryNMessages ||
		cfg.MaxMessagesToSummarize() != DefaultMaxMessagesToSummarize {
		t.Errorf("summarizer defaults not applied")
	}
	if cfg.Temperature() != DefaultTemperature {
		t.Errorf("temperature default not applied: %v", cfg.Temperature())
	}
	if cfg.Model() != "" {
		t.Errorf("model should default to empty, got %q", cfg.Model())
	}
}

func TestLoadParsesFile(t *testing.T) {
	writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9100
database:
  path: /tmp/custom.db
summarizer:
  min_messages_for_summary: 4
  summarize_every_n_messages: 6
  max_messages_to_summarize: 25
  temperature: 0.7
  model: gpt-4o-mini
`)

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host() != "0.0.0.0" || cfg.Port() != 9100 {
		t.Errorf("server config not parsed: %s:%d", cfg.Host(), cfg.Port())
	}
	if cfg.DatabasePath() != "/tmp/custom.db" {
		t.Errorf("database path not parsed: %q", cfg.DatabasePath())
	}
	if cfg.MinMessagesForSummary() != 4 || cfg.SummarizeEveryNMessages() != 6 || cfg.MaxMessagesToSummarize() != 25 {
		t.Errorf("summarizer thresholds not parsed")
	}
	if cfg.Temperature() != 0.7 {
		t.Errorf("temperature not parsed: %v", cfg.Temperature())
	}
	if cfg.Model() != "gpt-4o-mini" {
		t.Errorf("model not parsed: %q", cfg.Model())
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	writeConfig(t, `
summarizer:
  min_messages_for_summary: 3
`)

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinMessagesForSummary() != 3 {
		t.Errorf("explicit value lost")
	}
	if cfg.Port() != DefaultPort || cfg.SummarizeEveryNMessages() != DefaultSummarizeEveryNMessages {
		t.Errorf("unset fields should keep defaults")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"zero min messages", "summarizer:\n  min_messages_for_summary: 0\n"},
		{"negative growth", "summarizer:\n  summarize_every_n_messages: -1\n"},
		{"bad yaml", "server: [not a map\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writeConfig(t, tc.content)
			if _, _, err := Load(); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestDatabasePathDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &AppConfig{}
	want := filepath.Join(home, ".threadline", "threadline.db")
	if got := cfg.DatabasePath(); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}
}
