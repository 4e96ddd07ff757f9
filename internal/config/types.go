package config

// Config is the root configuration for the wellops daemon and CLI.
//
// Files may be JSON or YAML; YAML is converted to JSON and decoded with
// DisallowUnknownFields so typos are caught at load/reload time.
type Config struct {
	Company CompanyConfig `json:"company"`
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`

	// Schedule controls look-ahead schedule behavior (timezone used when
	// rendering statement dates; cascade arithmetic is instant-based).
	Schedule ScheduleConfig `json:"schedule"`

	// Reminder controls the vendor call-reminder pipeline.
	// If omitted, reminders are disabled.
	Reminder *ReminderConfig `json:"reminder,omitempty"`

	// API controls the local HTTP API. If omitted, the API is disabled.
	API *APIConfig `json:"api,omitempty"`
}

// CompanyConfig carries identity used on financial statements.
type CompanyConfig struct {
	Name string `json:"name"`
}

// StorageConfig controls the SQLite system of record.
//
// Example:
//
//	"storage": { "path": "./wellops.db" }
type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (e.g. "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type ScheduleConfig struct {
	// Timezone is an IANA TZ name, e.g. "America/Chicago".
	// Empty means the host's local timezone.
	Timezone string `json:"timezone,omitempty"`
}

// ReminderConfig controls the async vendor call-reminder pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - scan_spec: "*/1 * * * *"
//   - look_ahead: "24h"
//   - workers: 2
//   - queue_size: 256
//   - rate_per_sec: 3
//   - dedup_window: "24h"
type ReminderConfig struct {
	Enabled bool `json:"enabled"`

	// ScanSpec is a cron spec (5-field, or 6-field with seconds) that
	// controls how often upcoming tasks are scanned for due calls.
	ScanSpec string `json:"scan_spec,omitempty"`

	// LookAhead bounds how far ahead of now the scan considers tasks.
	LookAhead string `json:"look_ahead,omitempty"`

	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`

	Sink ReminderSinkConfig `json:"sink"`
}

// ReminderSinkConfig selects where reminders are delivered.
//
// Type values:
//   - "log": write reminders to the structured log (default)
//   - "webhook": POST JSON to URL
type ReminderSinkConfig struct {
	Type    string `json:"type,omitempty"`
	URL     string `json:"url,omitempty"`
	Timeout string `json:"timeout,omitempty"` // Go duration string
}

// APIConfig controls the local HTTP API server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:7070").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type APIConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:7070"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
