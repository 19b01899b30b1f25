package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ErrInvalidDsn is returned when DSN has no scheme or an unsupported one.
var ErrInvalidDsn = errors.New("invalid DSN: must be in format driver://dataSourceName")

var supportedSchemes = map[string]bool{
	"postgres":   true,
	"postgresql": true,
	"sqlite":     true,
	"sqlite3":    true,
}

type Config struct{ v *viper.Viper }

func New() *Config {
	vv := viper.New()
	vv.AutomaticEnv()
	return &Config{v: vv}
}

// Load reads CONFIG_FILE when set. Environment variables still take precedence.
func (c *Config) Load() error {
	path := c.v.GetString("CONFIG_FILE")
	if path == "" {
		return nil
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s failed: %w", path, err)
	}
	return nil
}

func (c *Config) Set(key string, value any) { c.v.Set(key, value) }

// GetDsn resolves the database DSN from DSN, or from the libpq PG* variables.
func (c *Config) GetDsn() (string, error) {
	source := c.v.GetString("DSN")
	if source == "" {
		source = c.postgresDsnFromEnv()
	}

	scheme, rest, ok := strings.Cut(source, "://")
	if !ok || rest == "" || !supportedSchemes[strings.ToLower(scheme)] {
		return "", ErrInvalidDsn
	}
	if strings.HasPrefix(scheme, "postgres") {
		if _, err := url.Parse(source); err != nil {
			return "", ErrInvalidDsn
		}
	}
	return source, nil
}

func (c *Config) postgresDsnFromEnv() string {
	user := c.v.GetString("PGUSER")
	if user == "" {
		user = c.v.GetString("USER")
	}
	if user == "" {
		user = "postgres"
	}

	dbName := c.v.GetString("PGDATABASE")
	if dbName == "" {
		dbName = "rankedin"
	}

	host := c.v.GetString("PGHOST")
	if host == "" {
		host = "localhost"
	}

	port := c.v.GetString("PGPORT")
	hasPortEnv := port != ""
	if !hasPortEnv {
		port = "5432"
	}

	if !strings.HasPrefix(host, "/") {
		return "postgres://" + user + "@" + host + ":" + port + "/" + dbName + "?sslmode=disable"
	}

	socketDir := host
	// PGHOST may point at the socket file itself, e.g. /run/postgresql/.s.PGSQL.5433
	if fi, err := os.Stat(host); err == nil && !fi.IsDir() {
		socketDir = filepath.Dir(host)
		if base := filepath.Base(host); !hasPortEnv && strings.HasPrefix(base, ".s.PGSQL.") {
			if _, err := strconv.Atoi(strings.TrimPrefix(base, ".s.PGSQL.")); err == nil {
				port = strings.TrimPrefix(base, ".s.PGSQL.")
			}
		}
	}

	q := url.Values{}
	q.Set("host", socketDir)
	q.Set("port", port)
	q.Set("sslmode", "disable")
	return "postgres://" + user + "@/" + dbName + "?" + q.Encode()
}

func (c *Config) GetGitHubToken() string {
	if t := c.v.GetString("GITHUB_TOKEN"); t != "" {
		return t
	}
	return c.v.GetString("GH_TOKEN")
}

// GetGitHubBaseURL returns GITHUB_API_URL, empty for api.github.com.
func (c *Config) GetGitHubBaseURL() string { return c.v.GetString("GITHUB_API_URL") }

func (c *Config) GetAddr() string {
	port := c.v.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	host := c.v.GetString("HOST")
	if host == "" {
		host = "localhost"
	}
	return host + ":" + port
}

func (c *Config) GetServiceName() string {
	if name := c.v.GetString("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return "rankedin"
}

// GetTelemetryEnabled reports whether an OTLP endpoint is configured.
func (c *Config) GetTelemetryEnabled() bool {
	return c.v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		c.v.GetString("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

// GetBadgeCacheTTL returns the max-age advertised on SVG badges.
// Reads duration from env var BADGE_CACHE_TTL; defaults to 5m.
func (c *Config) GetBadgeCacheTTL() time.Duration {
	const def = 5 * time.Minute
	if v := c.v.GetString("BADGE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

// GetMaxPageSize caps the limit query parameter of list routes.
func (c *Config) GetMaxPageSize() int {
	if n := c.v.GetInt("MAX_PAGE_SIZE"); n > 0 {
		return n
	}
	return 100
}

// GetLogLevel returns the log level from env var LOG_LEVEL mapped to slog.Level.
// Recognized values: debug, info (default), warn|warning, error.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.v.GetString("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogFormat returns "json" or "text" (default) from LOG_FORMAT.
func (c *Config) GetLogFormat() string {
	if strings.EqualFold(c.v.GetString("LOG_FORMAT"), "json") {
		return "json"
	}
	return "text"
}

// OnLogLevelChange calls fn with the slog.Level whenever it changes.
// The initial call is made immediately.
func (c *Config) OnLogLevelChange(fn func(slog.Level)) {
	apply := func() { fn(c.GetLogLevel()) }
	apply()
	c.v.OnConfigChange(func(fsnotify.Event) { apply() })
}

// Watch reloads CONFIG_FILE whenever it changes on disk.
func (c *Config) Watch() {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.WatchConfig()
}
