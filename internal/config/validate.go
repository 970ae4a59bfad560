package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	logx "taskpanel/pkg/logx"
)

const (
	EnvBackendPassword = "TASKPANEL_BACKEND_PASSWORD"
	EnvTelegramToken   = "TASKPANEL_TELEGRAM_TOKEN"
)

var validFolders = map[string]bool{"downloads": true, "autokey": true}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ApplyEnv fills secrets from the environment when the file leaves them empty.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Backend.Password) == "" {
		cfg.Backend.Password = os.Getenv(EnvBackendPassword)
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = os.Getenv(EnvTelegramToken)
	}
}

// Validate rejects configs the panel cannot run with. It is also the
// hot-reload gate: a rejected file keeps the previous config live.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	raw := strings.TrimSpace(cfg.Backend.BaseURL)
	if raw == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url: invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url: unsupported scheme %q", u.Scheme)
	}
	if _, err := ParseDurationField("backend.timeout", cfg.Backend.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("panel.command_timeout", cfg.Panel.CommandTimeout); err != nil {
		return err
	}
	if f := strings.TrimSpace(cfg.Panel.DefaultFolder); f != "" && !validFolders[f] {
		return fmt.Errorf("panel.default_folder: unknown folder %q (want downloads or autokey)", f)
	}
	if cfg.Panel.PreviewCount < 0 {
		return fmt.Errorf("panel.preview_count must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Panel.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("panel.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(cfg.Storage.Path) == "" {
				return fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver)
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// BackendTimeout returns the effective HTTP timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	d, err := ParseDurationOrDefault("backend.timeout", c.Backend.Timeout, 15*time.Second)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// DefaultFolder returns the folder the file manager opens on.
func (c *Config) DefaultFolder() string {
	if f := strings.TrimSpace(c.Panel.DefaultFolder); f != "" {
		return f
	}
	return "downloads"
}

// PreviewCount returns how many upcoming cron fire times to show.
func (c *Config) PreviewCount() int {
	if c.Panel.PreviewCount > 0 {
		return c.Panel.PreviewCount
	}
	return 5
}

// Location returns the timezone used for schedule previews.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Panel.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// SummarizeChange lists changed sections plus log-safe attributes (secrets
// are reported only as set/unset).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Backend.BaseURL != newCfg.Backend.BaseURL ||
		oldCfg.Backend.Username != newCfg.Backend.Username ||
		oldCfg.Backend.Password != newCfg.Backend.Password ||
		oldCfg.Backend.Timeout != newCfg.Backend.Timeout {
		changed = append(changed, "backend")
		attrs = append(attrs,
			logx.String("backend.base_url", newCfg.Backend.BaseURL),
			logx.Bool("backend.login_set", newCfg.Backend.Username != ""),
		)
	}
	if oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		oldCfg.Telegram.GroupLog != newCfg.Telegram.GroupLog {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", newCfg.Telegram.GroupLog != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs, logx.String("logging.level", newCfg.Logging.Level))
	}
	if !reflect.DeepEqual(oldCfg.Panel, newCfg.Panel) {
		changed = append(changed, "panel")
	}
	if !reflect.DeepEqual(oldCfg.Metrics, newCfg.Metrics) {
		changed = append(changed, "metrics")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	return changed, attrs
}
