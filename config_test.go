package banklens

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banklens/banklens/extract"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":3001" {
		t.Errorf("addr = %q, want :3001", cfg.Server.Addr)
	}
	if cfg.Ollama.Model != "phi4" {
		t.Errorf("model = %q, want phi4", cfg.Ollama.Model)
	}
	if cfg.Ollama.Timeout != 5*time.Minute {
		t.Errorf("timeout = %s, want 5m", cfg.Ollama.Timeout)
	}
	if cfg.Extract.Backend != extract.BackendCommand {
		t.Errorf("backend = %q, want command", cfg.Extract.Backend)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banklens.yaml")
	content := `
server:
  addr: ":9999"
ollama:
  model: llama3
  timeout: 2m
extract:
  backend: docker
  image: custom/poppler
retention:
  max_age: 720h
workers: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.Ollama.Model != "llama3" {
		t.Errorf("model = %q, want llama3", cfg.Ollama.Model)
	}
	if cfg.Ollama.Timeout != 2*time.Minute {
		t.Errorf("timeout = %s, want 2m", cfg.Ollama.Timeout)
	}
	if cfg.Extract.Backend != extract.BackendDocker {
		t.Errorf("backend = %q, want docker", cfg.Extract.Backend)
	}
	if cfg.Extract.Image != "custom/poppler" {
		t.Errorf("image = %q, want custom/poppler", cfg.Extract.Image)
	}
	if cfg.Retention.MaxAge != 720*time.Hour {
		t.Errorf("max_age = %s, want 720h", cfg.Retention.MaxAge)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}

	// Unset fields keep their defaults.
	if cfg.Retention.Cron != "0 3 * * *" {
		t.Errorf("cron = %q, want default", cfg.Retention.Cron)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "remote:11434")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok123")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Ollama.Host != "remote:11434" {
		t.Errorf("host = %q, want remote:11434", cfg.Ollama.Host)
	}
	if cfg.Telegram.Token != "tok123" {
		t.Errorf("token = %q, want tok123", cfg.Telegram.Token)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty model", "ollama:\n  model: \"\"\n"},
		{"unknown backend", "extract:\n  backend: carrier-pigeon\n"},
		{"negative retention", "retention:\n  max_age: -1h\n"},
	}

	for _, tt := range tests {
		path := filepath.Join(dir, tt.name+".yaml")
		if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BANKLENS_HOME", dir)

	if Home() != dir {
		t.Errorf("Home() = %q, want %q", Home(), dir)
	}
	if DefaultDBPath() != filepath.Join(dir, "banklens.db") {
		t.Errorf("DefaultDBPath() = %q", DefaultDBPath())
	}
	if err := EnsureHome(); err != nil {
		t.Fatalf("EnsureHome error: %v", err)
	}
	if _, err := os.Stat(InboxPath()); err != nil {
		t.Errorf("inbox not created: %v", err)
	}
}
