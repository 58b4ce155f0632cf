package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backend targets, resolved once at startup.
	Targets []Target

	// Statement execution.
	QueryTimeout   time.Duration // server-enforced statement deadline
	AcquireTimeout time.Duration // max wait for a pooled connection

	// Row caps per call-site profile.
	AdHocDefaultRows   int
	AdHocMaxRows       int
	PreviewDefaultRows int
	PreviewMaxRows     int

	// Classifier capabilities.
	AllowExtended bool // admit SHOW/EXPLAIN/WITH/VALUES besides SELECT
	StrictParse   bool // additionally run accepted statements through the PG parser

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Connection pool, applied per target.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool

	// CLI-only fields (not settable via env vars).
	ExplainOnly bool
	AuditLog    string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	TargetsFile     *string
	DatabaseURL     *string
	LogLevel        *string
	QueryTimeout    *time.Duration
	AcquireTimeout  *time.Duration
	MaxRows         *int
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	OTelEnabled     bool
	AllowExtended   bool
	StrictParse     bool
	ExplainOnly     bool
	AuditLog        string

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI
// overrides, then resolves targets and validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}

	targetsFile := os.Getenv("TARGETS_FILE")
	databaseURL := os.Getenv("DATABASE_URL")
	if overrides.TargetsFile != nil {
		targetsFile = *overrides.TargetsFile
	}
	if overrides.DatabaseURL != nil {
		databaseURL = *overrides.DatabaseURL
	}

	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}

	targets, err := resolveTargets(targetsFile, databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.Targets = targets

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		QueryTimeout:        30 * time.Second,
		AcquireTimeout:      5 * time.Second,
		AdHocDefaultRows:    1000,
		AdHocMaxRows:        5000,
		PreviewDefaultRows:  10,
		PreviewMaxRows:      100,
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("ACQUIRE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ACQUIRE_TIMEOUT value %q: %w", v, err)
		}
		cfg.AcquireTimeout = d
	}

	if err := loadRowCapEnvVars(cfg); err != nil {
		return err
	}

	if v := os.Getenv("ALLOW_EXTENDED_STATEMENTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ALLOW_EXTENDED_STATEMENTS value %q: %w", v, err)
		}
		cfg.AllowExtended = b
	}

	if v := os.Getenv("STRICT_PARSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STRICT_PARSE value %q: %w", v, err)
		}
		cfg.StrictParse = b
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return loadPoolEnvVars(cfg)
}

func loadRowCapEnvVars(cfg *Config) error {
	caps := []struct {
		env  string
		dest *int
	}{
		{"DEFAULT_ROWS", &cfg.AdHocDefaultRows},
		{"MAX_ROWS", &cfg.AdHocMaxRows},
		{"PREVIEW_DEFAULT_ROWS", &cfg.PreviewDefaultRows},
		{"PREVIEW_MAX_ROWS", &cfg.PreviewMaxRows},
	}
	for _, c := range caps {
		if v := os.Getenv(c.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid %s value %q: must be a positive integer", c.env, v)
			}
			*c.dest = n
		}
	}
	return nil
}

func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) error {
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.AcquireTimeout != nil {
		cfg.AcquireTimeout = *o.AcquireTimeout
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.AdHocMaxRows = *o.MaxRows
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.ExplainOnly = o.ExplainOnly
	cfg.AuditLog = o.AuditLog
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	cfg.AllowExtended = cfg.AllowExtended || o.AllowExtended
	cfg.StrictParse = cfg.StrictParse || o.StrictParse

	return nil
}

func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

func validate(cfg *Config) error {
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured (set TARGETS_FILE, DATABASE_URL, or the matching flags)")
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	if cfg.AdHocDefaultRows > cfg.AdHocMaxRows {
		return fmt.Errorf("DEFAULT_ROWS (%d) must not exceed MAX_ROWS (%d)", cfg.AdHocDefaultRows, cfg.AdHocMaxRows)
	}
	if cfg.PreviewDefaultRows > cfg.PreviewMaxRows {
		return fmt.Errorf("PREVIEW_DEFAULT_ROWS (%d) must not exceed PREVIEW_MAX_ROWS (%d)", cfg.PreviewDefaultRows, cfg.PreviewMaxRows)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
