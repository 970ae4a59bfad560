package app

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"taskpanel/internal/bot"
	"taskpanel/internal/config"
	"taskpanel/internal/observability/metrics"
	"taskpanel/internal/panel"
	"taskpanel/internal/storage"
	logx "taskpanel/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// setLogTarget points the Telegram log sink at telegram.group_log. An empty
// or non-numeric value clears the target.
func setLogTarget(svc *logx.Service, cfg *config.Config) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
	if err != nil {
		svc.SetTelegramTarget(0, 0)
		return
	}
	svc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
}

func mapMetricsConfig(cfg *config.Config) metrics.Config {
	if cfg.Metrics == nil {
		return metrics.Config{}
	}
	return metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Pprof:   cfg.Metrics.Pprof,
	}
}

func commandTimeout(cfg *config.Config) time.Duration {
	d, err := config.ParseDurationOrDefault("panel.command_timeout", cfg.Panel.CommandTimeout, 30*time.Second)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func botOptions(cfg *config.Config) bot.Options {
	// Validate has already rejected unknown folders.
	folder, _ := panel.ParseFolder(cfg.DefaultFolder())
	return bot.Options{
		DefaultFolder: folder,
		PreviewCount:  cfg.PreviewCount(),
		Location:      cfg.Location(),
	}
}

// validateReload runs on hot reload after config.Validate and before the
// new config is committed.
func validateReload(_ context.Context, cfg *config.Config) error {
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if addr := strings.TrimSpace(cfg.Metrics.Addr); addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return fmt.Errorf("metrics.addr: %w", err)
			}
		}
	}
	return nil
}
