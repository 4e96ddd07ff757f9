package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
company:
  name: Acme Well Control
logging:
  level: DEBUG
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: ./wellops.db
  busy_timeout: 5s
schedule:
  timezone: America/Chicago
reminder:
  enabled: true
  scan_spec: "*/5 * * * *"
  look_ahead: 48h
  rate_per_sec: 2
  sink:
    type: log
api:
  enabled: true
  addr: 127.0.0.1:7070
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Company.Name != "Acme Well Control" {
		t.Fatalf("company name = %q", cfg.Company.Name)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.Console {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Reminder == nil || !cfg.Reminder.Enabled || cfg.Reminder.ScanSpec != "*/5 * * * *" {
		t.Fatalf("unexpected reminder config: %+v", cfg.Reminder)
	}
	if cfg.API == nil || cfg.API.Addr != "127.0.0.1:7070" {
		t.Fatalf("unexpected api config: %+v", cfg.API)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get returned a different config pointer")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"storage": {"path": "./db.sqlite"},
		"logging": {"level": "INFO", "console": true, "file": {"enabled": false, "path": ""}},
		"company": {"name": "x"},
		"schedule": {},
		"bogus_section": true
	}`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestParseRequiresStoragePath(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"storage": {"path": "  "},
		"logging": {"level": "INFO", "console": true, "file": {"enabled": false, "path": ""}},
		"company": {"name": "x"},
		"schedule": {}
	}`)

	_, err := NewManager(path).Parse()
	if err == nil || !strings.Contains(err.Error(), "storage.path") {
		t.Fatalf("expected storage.path error, got %v", err)
	}
}

func TestParseRejectsWebhookWithoutURL(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"storage": {"path": "./db.sqlite"},
		"logging": {"level": "INFO", "console": true, "file": {"enabled": false, "path": ""}},
		"company": {"name": "x"},
		"schedule": {},
		"reminder": {"enabled": true, "sink": {"type": "webhook"}}
	}`)

	_, err := NewManager(path).Parse()
	if err == nil || !strings.Contains(err.Error(), "reminder.sink.url") {
		t.Fatalf("expected sink url error, got %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"", "0s", false},
		{"5s", "5s", false},
		{"2m30s", "2m30s", false},
		{"-1s", "", true},
		{"soon", "", true},
	}
	for _, tt := range tests {
		d, err := ParseDurationField("x", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
		}
		if d.String() != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, d, tt.want)
		}
	}
}
