package config

type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Panel    PanelConfig    `json:"panel"`
	Metrics  *MetricsConfig `json:"metrics,omitempty"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

// BackendConfig points the panel at the scheduler's REST API.
//
// Username/Password are optional; when set, the client opens a session via
// POST /login before the first API call. The password can also come from
// TASKPANEL_BACKEND_PASSWORD so it stays out of the file.
type BackendConfig struct {
	BaseURL  string `json:"base_url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// Timeout is a Go duration string (e.g. "10s"). Empty means 15s.
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// PanelConfig holds front-end preferences.
//
// Defaults: default_folder "downloads", preview_count 5, timezone local.
type PanelConfig struct {
	DefaultFolder string `json:"default_folder,omitempty"`
	PreviewCount  int    `json:"preview_count,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	// CommandTimeout bounds a single bot command (Go duration string). Empty means 30s.
	CommandTimeout string `json:"command_timeout,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint.
//
// Prefer binding to localhost (e.g. "127.0.0.1:9464").
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Path    string `json:"path,omitempty"` // default: "/metrics"
	// Pprof also serves net/http/pprof under /debug/pprof/.
	Pprof bool `json:"pprof,omitempty"`
}

// StorageConfig controls the operator audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/audit.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
