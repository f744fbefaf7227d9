package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Database
	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://bot@db/bot")
	t.Setenv("DB_CACHE_EXPIRY_SECONDS", "120")
	t.Setenv("DB_CHANNEL_CACHE_SIZE", "16")
	t.Setenv("DB_USERNAME_CACHE_SIZE", "32")
	t.Setenv("DB_TTL_SWEEP_EVERY", "1m")

	// Auto-reply / remote control
	t.Setenv("AR_MAX_RESPONSES", "3")
	t.Setenv("AR_MAX_CONTENT_LENGTH", "100")
	t.Setenv("AR_SHORT_WINDOW_PERMA_REMOVE_SECONDS", "0")
	t.Setenv("RC_IDLE_DEACTIVATE_SECONDS", "90s")

	// Validators / workers
	t.Setenv("VALIDATOR_TIMEOUT", "2s")
	t.Setenv("VALIDATOR_CACHE_TTL", "1m")
	t.Setenv("LINE_STICKER_URL_TEMPLATE", "https://cdn.example/%s.png")
	t.Setenv("ASYNC_POOL_SIZE", "8")
	t.Setenv("ASYNC_TASK_TIMEOUT", "3s")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Database
	wantDB := DatabaseConfig{
		Driver:            "postgres",
		DSN:               "postgres://bot@db/bot",
		CacheExpiry:       2 * time.Minute,
		ChannelCacheSize:  16,
		UserNameCacheSize: 32,
		TTLSweepEvery:     time.Minute,
	}
	if cfg.Database != wantDB {
		t.Fatalf("database unexpected: %+v", cfg.Database)
	}

	// Auto-reply / remote control
	if cfg.AutoReply != (AutoReplyConfig{MaxResponses: 3, MaxContentLength: 100, ShortWindow: 0}) {
		t.Fatalf("auto-reply unexpected: %+v", cfg.AutoReply)
	}
	if cfg.RemoteControl.IdleDeactivate != 90*time.Second {
		t.Fatalf("remote control unexpected: %+v", cfg.RemoteControl)
	}

	// Validators / workers
	if cfg.Validators.Timeout != 2*time.Second || cfg.Validators.CacheTTL != time.Minute ||
		cfg.Validators.StickerURLTemplate != "https://cdn.example/%s.png" {
		t.Fatalf("validators unexpected: %+v", cfg.Validators)
	}
	if cfg.Workers.PoolSize != 8 || cfg.Workers.TaskTimeout != 3*time.Second {
		t.Fatalf("workers unexpected: %+v", cfg.Workers)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "app.db" {
		t.Fatalf("database defaults unexpected: %+v", cfg.Database)
	}
	if cfg.AutoReply.MaxResponses != 5 || cfg.AutoReply.MaxContentLength != 2000 || cfg.AutoReply.ShortWindow != 5*time.Second {
		t.Fatalf("auto-reply defaults unexpected: %+v", cfg.AutoReply)
	}
	if cfg.RemoteControl.IdleDeactivate != 300*time.Second {
		t.Fatalf("idle deactivate default unexpected: %v", cfg.RemoteControl.IdleDeactivate)
	}
	if cfg.Workers.PoolSize != 64 {
		t.Fatalf("pool size default unexpected: %d", cfg.Workers.PoolSize)
	}
	if cfg.OTEL.ServiceName != "go-autoreply-backend" {
		t.Fatalf("service name default unexpected: %q", cfg.OTEL.ServiceName)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty PORT via spaces", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes <= 0", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"unknown driver", "DB_DRIVER", "mysql", "DB_DRIVER"},
		{"empty DATABASE_URL", "DATABASE_URL", "   ", "DATABASE_URL must not be empty"},
		{"cache expiry non-positive", "DB_CACHE_EXPIRY_SECONDS", "0", "DB_CACHE_EXPIRY_SECONDS"},
		{"channel cache size < 1", "DB_CHANNEL_CACHE_SIZE", "0", "cache sizes"},
		{"max responses < 1", "AR_MAX_RESPONSES", "0", "AR_MAX_RESPONSES"},
		{"max content length < 1", "AR_MAX_CONTENT_LENGTH", "0", "AR_MAX_CONTENT_LENGTH"},
		{"short window negative", "AR_SHORT_WINDOW_PERMA_REMOVE_SECONDS", "-1", "AR_SHORT_WINDOW_PERMA_REMOVE_SECONDS"},
		{"idle deactivate zero", "RC_IDLE_DEACTIVATE_SECONDS", "0", "RC_IDLE_DEACTIVATE_SECONDS"},
		{"validator timeout zero", "VALIDATOR_TIMEOUT", "0s", "VALIDATOR_TIMEOUT"},
		{"pool size < 1", "ASYNC_POOL_SIZE", "0", "ASYNC_POOL_SIZE"},
		{"task timeout zero", "ASYNC_TASK_TIMEOUT", "0s", "ASYNC_TASK_TIMEOUT"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts max age negative", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %s validation error, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getsec(t *testing.T) {
	t.Setenv("S_INT", " 45 ")
	if getsec("S_INT", 0) != 45*time.Second {
		t.Fatalf("getsec integer seconds failed")
	}
	t.Setenv("S_DUR", "2m")
	if getsec("S_DUR", 0) != 2*time.Minute {
		t.Fatalf("getsec duration string failed")
	}
	t.Setenv("S_BAD", "soon")
	if getsec("S_BAD", 7*time.Second) != 7*time.Second {
		t.Fatalf("getsec default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + letter(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + letter(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

func letter(i int) string { return string('a' + rune(i)) }

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}
