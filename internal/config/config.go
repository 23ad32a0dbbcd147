package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Money is in minor units, discounts in whole
// percent and durations use time.ParseDuration syntax ("10m", "30s").
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // zap level override; empty keeps the env default
	DBUser   string // database username
	DBPass   string // database password (optional)
	DBHost   string // database host address
	DBPort   string // database port number
	DBName   string // database name

	JWTSecret string // secret shared with the identity service to verify JWTs

	PaymentGatewayURL string // base URL of the payment gateway REST API
	PaymentKeyID      string // gateway key id, also handed to the checkout widget
	PaymentKeySecret  string // gateway key secret: basic auth and callback signatures
	Currency          string // ISO currency of every charge

	HoldTTL           time.Duration // how long a seat hold lasts
	HoldSweepInterval time.Duration // how often expired holds are reclaimed
	IdempotencyTTL    time.Duration // lifetime of cached checkout starts
	ShutdownTimeout   time.Duration // grace period for in-flight requests

	SilverDiscountPct int64 // discount percent for SILVER members
	GoldDiscountPct   int64 // discount percent for GOLD members

	RabbitURL   string // AMQP broker URL; empty disables events
	EventLogDir string // where the event consumer appends its log files
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables that are already set.  Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Every missing required variable is reported in one error.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		DBUser:   must("DB_USER"),
		DBPass:   os.Getenv("DB_PASS"), // empty allowed
		DBHost:   must("DB_HOST"),
		DBPort:   envStr("DB_PORT", "3306"),
		DBName:   must("DB_NAME"),

		JWTSecret: must("JWT_SECRET"),

		PaymentGatewayURL: envStr("PAYMENT_GATEWAY_URL", "https://api.razorpay.com"),
		PaymentKeyID:      must("PAYMENT_KEY_ID"),
		PaymentKeySecret:  must("PAYMENT_KEY_SECRET"),
		Currency:          strings.ToUpper(envStr("PAYMENT_CURRENCY", "INR")),

		HoldTTL:           envDur("HOLD_TTL", 10*time.Minute),
		HoldSweepInterval: envDur("HOLD_SWEEP_INTERVAL", 30*time.Second),
		IdempotencyTTL:    envDur("IDEMPOTENCY_TTL", 15*time.Minute),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 10*time.Second),

		SilverDiscountPct: int64(envInt("TIER_SILVER_DISCOUNT_PCT", 10)),
		GoldDiscountPct:   int64(envInt("TIER_GOLD_DISCOUNT_PCT", 15)),

		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		EventLogDir: envStr("EVENT_LOG_DIR", "logs"),
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HoldTTL <= 0 {
		return errors.New("HOLD_TTL must be positive")
	}
	if c.HoldSweepInterval <= 0 {
		return errors.New("HOLD_SWEEP_INTERVAL must be positive")
	}
	for name, pct := range map[string]int64{
		"TIER_SILVER_DISCOUNT_PCT": c.SilverDiscountPct,
		"TIER_GOLD_DISCOUNT_PCT":   c.GoldDiscountPct,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got %d", name, pct)
		}
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter code, got %q", c.Currency)
	}
	return nil
}
