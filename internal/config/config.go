// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the server, logging,
// database, auto-reply, remote-control, validator, worker and observability
// settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-autoreply-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the document store and its caches.
type DatabaseConfig struct {
	Driver            string        // sqlite|postgres
	DSN               string        // file path for sqlite, URL for postgres
	CacheExpiry       time.Duration // channel and user-name cache TTL
	ChannelCacheSize  int
	UserNameCacheSize int
	TTLSweepEvery     time.Duration // how often lapsed sessions are evicted
}

// AutoReplyConfig bounds module contents and overwrite behaviour.
type AutoReplyConfig struct {
	MaxResponses     int
	MaxContentLength int
	// ShortWindow is the age below which an overwritten module is deleted
	// rather than kept inactive.
	ShortWindow time.Duration
}

// RemoteControlConfig controls session lifetime.
type RemoteControlConfig struct {
	IdleDeactivate time.Duration
}

// ValidatorConfig tunes the remote content checks.
type ValidatorConfig struct {
	Timeout            time.Duration
	CacheTTL           time.Duration
	StickerURLTemplate string
}

// WorkerConfig sizes the fire-and-forget pool.
type WorkerConfig struct {
	PoolSize    int
	TaskTimeout time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	Database      DatabaseConfig
	AutoReply     AutoReplyConfig
	RemoteControl RemoteControlConfig
	Validators    ValidatorConfig
	Workers       WorkerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Database: DatabaseConfig{
			Driver:            strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:               getenv("DATABASE_URL", "app.db"),
			CacheExpiry:       getsec("DB_CACHE_EXPIRY_SECONDS", 60*time.Second),
			ChannelCacheSize:  getint("DB_CHANNEL_CACHE_SIZE", 1024),
			UserNameCacheSize: getint("DB_USERNAME_CACHE_SIZE", 4096),
			TTLSweepEvery:     getdur("DB_TTL_SWEEP_EVERY", 30*time.Second),
		},
		AutoReply: AutoReplyConfig{
			MaxResponses:     getint("AR_MAX_RESPONSES", 5),
			MaxContentLength: getint("AR_MAX_CONTENT_LENGTH", 2000),
			ShortWindow:      getsec("AR_SHORT_WINDOW_PERMA_REMOVE_SECONDS", 5*time.Second),
		},
		RemoteControl: RemoteControlConfig{
			IdleDeactivate: getsec("RC_IDLE_DEACTIVATE_SECONDS", 300*time.Second),
		},
		Validators: ValidatorConfig{
			Timeout:            getdur("VALIDATOR_TIMEOUT", 5*time.Second),
			CacheTTL:           getdur("VALIDATOR_CACHE_TTL", 10*time.Minute),
			StickerURLTemplate: getenv("LINE_STICKER_URL_TEMPLATE", ""),
		},
		Workers: WorkerConfig{
			PoolSize:    getint("ASYNC_POOL_SIZE", 64),
			TaskTimeout: getdur("ASYNC_TASK_TIMEOUT", 10*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-autoreply-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Database.Driver == "postgresql" {
		cfg.Database.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return cfg, errors.New("DATABASE_URL must not be empty")
	}
	if cfg.Database.CacheExpiry <= 0 || cfg.Database.TTLSweepEvery <= 0 {
		return cfg, errors.New("DB_CACHE_EXPIRY_SECONDS and DB_TTL_SWEEP_EVERY must be positive")
	}
	if cfg.Database.ChannelCacheSize < 1 || cfg.Database.UserNameCacheSize < 1 {
		return cfg, errors.New("cache sizes must be >= 1")
	}
	if cfg.AutoReply.MaxResponses < 1 {
		return cfg, errors.New("AR_MAX_RESPONSES must be >= 1")
	}
	if cfg.AutoReply.MaxContentLength < 1 {
		return cfg, errors.New("AR_MAX_CONTENT_LENGTH must be >= 1")
	}
	if cfg.AutoReply.ShortWindow < 0 {
		return cfg, errors.New("AR_SHORT_WINDOW_PERMA_REMOVE_SECONDS must be >= 0")
	}
	if cfg.RemoteControl.IdleDeactivate <= 0 {
		return cfg, errors.New("RC_IDLE_DEACTIVATE_SECONDS must be > 0")
	}
	if cfg.Validators.Timeout <= 0 || cfg.Validators.CacheTTL <= 0 {
		return cfg, errors.New("VALIDATOR_TIMEOUT and VALIDATOR_CACHE_TTL must be positive")
	}
	if cfg.Workers.PoolSize < 1 {
		return cfg, errors.New("ASYNC_POOL_SIZE must be >= 1")
	}
	if cfg.Workers.TaskTimeout <= 0 {
		return cfg, errors.New("ASYNC_TASK_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getsec reads a whole number of seconds; a Go duration string is accepted
// too so "90s" and "90" mean the same.
func getsec(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
