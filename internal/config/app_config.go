package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8790.
	Port int `envconfig:"PORT" default:"8790"`

	// DataDir is the root data directory. Defaults to ~/.tablebus.
	DataDir string `envconfig:"TABLEBUS_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HistoryCapacity is the number of recent events the bus retains.
	HistoryCapacity int `envconfig:"HISTORY_CAPACITY" default:"100"`

	// JournalEnabled turns the SQLite event journal on or off.
	JournalEnabled bool `envconfig:"JOURNAL_ENABLED" default:"true"`

	// JournalTypes limits which event types are journaled. Empty means every known type.
	JournalTypes []string `envconfig:"JOURNAL_TYPES"`

	// JournalBuffer is the number of events queued for the journal writer.
	JournalBuffer int `envconfig:"JOURNAL_BUFFER" default:"256"`

	// JournalRetention is how long journal entries are kept.
	JournalRetention time.Duration `envconfig:"JOURNAL_RETENTION" default:"168h"`

	// JournalPruneInterval is how often expired entries are removed.
	JournalPruneInterval time.Duration `envconfig:"JOURNAL_PRUNE_INTERVAL" default:"1h"`

	// CORSAllowedOrigins lists origins allowed to call the API from a browser.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// OTLPEndpoint enables trace export when set (host:port of an OTLP/gRPC collector).
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.tablebus if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".tablebus")
	}
	c.JournalTypes = compact(c.JournalTypes)
	c.CORSAllowedOrigins = compact(c.CORSAllowedOrigins)
	if c.HistoryCapacity <= 0 {
		return nil, fmt.Errorf("loading config: HISTORY_CAPACITY must be positive, got %d", c.HistoryCapacity)
	}
	return &c, nil
}

// compact trims list entries and drops empty ones, so a stray comma in a
// list variable does not produce a "" element.
func compact(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.tablebus/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// JournalPath returns the path to the SQLite journal database.
func (c *AppConfig) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}
