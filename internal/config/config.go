// Package config loads runtime settings from the environment and
// simulation scenarios from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the simulator.
type Config struct {
	Port             int
	LogLevel         string
	FeeRate          decimal.Decimal
	SimStart         time.Time
	CandleStep       time.Duration
	AutoTickInterval time.Duration // zero disables automatic ticking
	ScenarioFile     string
	FeedPath         string
	CacheDir         string
	DBPath           string
	KafkaBrokers     []string
	KafkaTopic       string
	WebhookTimeout   time.Duration
	CORSOrigins      []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultSimStart is the simulated time before the first tick.
var DefaultSimStart = time.Date(2022, 4, 29, 7, 0, 0, 1_000_000, time.UTC)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	feeRate, err := decimal.NewFromString(getStr("FEE_RATE", "0.003"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("invalid FEE_RATE: %s, must be in [0, 1)", feeRate)
	}

	simStart := DefaultSimStart
	if v := os.Getenv("SIM_START"); v != "" {
		simStart, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid SIM_START: %w", err)
		}
	}

	candleStep, err := getDuration("CANDLE_STEP", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CANDLE_STEP: %w", err)
	}
	if candleStep <= 0 {
		return nil, fmt.Errorf("invalid CANDLE_STEP: %v, must be positive", candleStep)
	}

	autoTick, err := getDuration("AUTO_TICK_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_TICK_INTERVAL: %w", err)
	}
	if autoTick < 0 {
		return nil, fmt.Errorf("invalid AUTO_TICK_INTERVAL: %v, must not be negative", autoTick)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	kafkaBrokers := getList("KAFKA_BROKERS")
	kafkaTopic := getStr("KAFKA_TOPIC", "papertrade.events")
	if len(kafkaBrokers) > 0 && kafkaTopic == "" {
		return nil, fmt.Errorf("invalid KAFKA_TOPIC: required when KAFKA_BROKERS is set")
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		FeeRate:          feeRate,
		SimStart:         simStart.UTC(),
		CandleStep:       candleStep,
		AutoTickInterval: autoTick,
		ScenarioFile:     os.Getenv("SCENARIO_FILE"),
		FeedPath:         os.Getenv("FEED_PATH"),
		CacheDir:         os.Getenv("CACHE_DIR"),
		DBPath:           os.Getenv("DB_PATH"),
		KafkaBrokers:     kafkaBrokers,
		KafkaTopic:       kafkaTopic,
		WebhookTimeout:   webhookTimeout,
		CORSOrigins:      getList("CORS_ORIGINS"),
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		IdleTimeout:      idleTimeout,
		ShutdownTimeout:  shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated variable, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
