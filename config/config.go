// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Defaults resolved in one place. Everything else reads AppConfig.
const (
	DefaultHTTPAddr               = ":5200"
	DefaultDBDriver               = "postgres"
	DefaultPhaseDurationDays      = 7
	DefaultBasePricePerPoint      = "0.10"
	DefaultCurrencyCode           = "USD"
	DefaultDisplayPlaces          = 2
	DefaultAutoAdvanceInterval    = 30 * time.Second
	DefaultInventorySyncInterval  = 1 * time.Minute
	DefaultTelemetryTimeout       = 5 * time.Second
	DefaultRedisStream            = "collectibles:lifecycle_events"
	DefaultKafkaTopic             = "collectibles.lifecycle"
	DefaultInventoryEndpointPath  = "/api/v1/public/items"
	DefaultAllowedOrigins         = "http://localhost:3000"
	DefaultLogLevel               = "info"
	DefaultStatusStreamPollPeriod = 2 * time.Second
)

// AppConfig aggregates runtime configuration read from the environment.
type AppConfig struct {
	HTTPAddr       string
	AllowedOrigins []string
	AdminToken     string

	DBDriver string
	DBDSN    string

	LogLevel  string
	LogPretty bool

	// Pricing
	BasePricePerPoint decimal.Decimal
	CurrencyCode      string
	DisplayPlaces     int32
	TierTablePath     string

	// Lifecycle
	PhaseDurationDays   int
	AutoInitialize      bool
	AutoAdvance         bool
	AutoAdvanceInterval time.Duration
	StreamPollPeriod    time.Duration

	// Inventory mirror
	InventorySyncURL      string
	InventorySyncPath     string
	InventorySyncToken    string
	InventorySyncInterval time.Duration

	// Telemetry sinks, each optional
	TelemetryTimeout time.Duration
	RedisAddr        string
	RedisDB          int
	RedisStream      string
	KafkaBrokers     []string
	KafkaTopic       string
	R2               R2Config
}

// R2Config holds the Cloudflare R2 credentials used by the report archive.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough R2 settings are present to build a client.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads .env (if present) and the environment, and validates the result.
func Load() (AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (AppConfig, error) {
	env := envReader{getenv: getenv}

	cfg := AppConfig{
		HTTPAddr:          env.str("HTTP_ADDR", DefaultHTTPAddr),
		AllowedOrigins:    splitCSV(env.str("ALLOWED_ORIGINS", DefaultAllowedOrigins)),
		AdminToken:        env.str("ADMIN_SERVICE_TOKEN", ""),
		DBDriver:          strings.ToLower(env.str("DB_DRIVER", DefaultDBDriver)),
		DBDSN:             env.str("DATABASE_URL", ""),
		LogLevel:          env.str("LOG_LEVEL", DefaultLogLevel),
		CurrencyCode:      strings.ToUpper(env.str("CURRENCY_CODE", DefaultCurrencyCode)),
		TierTablePath:     env.str("TIER_TABLE_PATH", ""),
		InventorySyncURL:  env.str("INVENTORY_SYNC_URL", ""),
		InventorySyncPath: env.str("INVENTORY_SYNC_PATH", DefaultInventoryEndpointPath),
		RedisAddr:         env.str("REDIS_ADDR", ""),
		RedisStream:       env.str("REDIS_STREAM", DefaultRedisStream),
		KafkaBrokers:      splitCSV(env.str("KAFKA_BROKERS", "")),
		KafkaTopic:        env.str("KAFKA_TOPIC", DefaultKafkaTopic),
		R2: R2Config{
			AccountID:       env.str("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     env.str("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: env.str("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          env.str("R2_BUCKET_NAME", ""),
			CDNBaseURL:      env.str("CDN_BASE_URL", ""),
		},
	}
	cfg.InventorySyncToken = env.str("INVENTORY_SYNC_TOKEN", cfg.AdminToken)

	var err error
	if cfg.LogPretty, err = env.boolean("LOG_PRETTY", false); err != nil {
		return AppConfig{}, err
	}
	if cfg.AutoInitialize, err = env.boolean("AUTO_INITIALIZE", true); err != nil {
		return AppConfig{}, err
	}
	if cfg.AutoAdvance, err = env.boolean("AUTO_ADVANCE", false); err != nil {
		return AppConfig{}, err
	}
	if cfg.PhaseDurationDays, err = env.integer("DEFAULT_PHASE_DURATION_DAYS", DefaultPhaseDurationDays); err != nil {
		return AppConfig{}, err
	}
	if cfg.RedisDB, err = env.integer("REDIS_DB", 0); err != nil {
		return AppConfig{}, err
	}
	places, err := env.integer("DISPLAY_PLACES", DefaultDisplayPlaces)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.DisplayPlaces = int32(places)

	if cfg.AutoAdvanceInterval, err = env.seconds("AUTO_ADVANCE_INTERVAL_SEC", DefaultAutoAdvanceInterval); err != nil {
		return AppConfig{}, err
	}
	if cfg.InventorySyncInterval, err = env.seconds("INVENTORY_SYNC_INTERVAL_SEC", DefaultInventorySyncInterval); err != nil {
		return AppConfig{}, err
	}
	if cfg.TelemetryTimeout, err = env.seconds("TELEMETRY_TIMEOUT_SEC", DefaultTelemetryTimeout); err != nil {
		return AppConfig{}, err
	}
	if cfg.StreamPollPeriod, err = env.seconds("STATUS_STREAM_POLL_SEC", DefaultStatusStreamPollPeriod); err != nil {
		return AppConfig{}, err
	}

	base, err := decimal.NewFromString(env.str("BASE_PRICE_PER_POINT", DefaultBasePricePerPoint))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BASE_PRICE_PER_POINT: %w", err)
	}
	cfg.BasePricePerPoint = base

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.AdminToken == "" {
		return fmt.Errorf("ADMIN_SERVICE_TOKEN environment variable not set")
	}
	if !c.BasePricePerPoint.IsPositive() {
		return fmt.Errorf("BASE_PRICE_PER_POINT must be > 0")
	}
	if c.PhaseDurationDays <= 0 {
		return fmt.Errorf("DEFAULT_PHASE_DURATION_DAYS must be > 0")
	}
	if c.DisplayPlaces < 0 || c.DisplayPlaces > 8 {
		return fmt.Errorf("DISPLAY_PLACES must be within [0,8]")
	}
	if len(c.CurrencyCode) != 3 {
		return fmt.Errorf("CURRENCY_CODE must be a 3-letter ISO code")
	}
	if c.AutoAdvanceInterval <= 0 || c.InventorySyncInterval <= 0 || c.TelemetryTimeout <= 0 || c.StreamPollPeriod <= 0 {
		return fmt.Errorf("interval settings must be > 0")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return fmt.Errorf("REDIS_STREAM must not be empty when REDIS_ADDR is set")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, fallback string) string {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func (e envReader) integer(key string, fallback int) (int, error) {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func (e envReader) boolean(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func (e envReader) seconds(key string, fallback time.Duration) (time.Duration, error) {
	n, err := e.integer(key, int(fallback/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
