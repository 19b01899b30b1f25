package config

import (
	"log/slog"
	"os"
)

// SetupLog installs the default slog logger. Its level follows LOG_LEVEL,
// including live changes from a watched CONFIG_FILE.
func SetupLog(cfg *Config) {
	var lv slog.LevelVar
	cfg.OnLogLevelChange(func(level slog.Level) { lv.Set(level) })

	opts := &slog.HandlerOptions{Level: &lv}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.GetLogFormat() == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h).With("service", cfg.GetServiceName()))
}
