package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort           string
	BackendBaseURL     string
	RequestTimeout     time.Duration
	SubmitTimeout      time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogMode            string

	RedisAddr       string
	RedisPassword   string
	CatalogCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// Load reads the configuration from the environment. Malformed numbers and
// durations fall back to their defaults; Validate reports what is unusable.
func Load() *Config {
	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		BackendBaseURL:     getEnv("BACKEND_BASE_URL", "http://localhost:8000/api/"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 10*time.Second),
		SubmitTimeout:      getDuration("SUBMIT_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		LogMode:            getEnv("LOG_MODE", "dev"),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CatalogCacheTTL: getDuration("CATALOG_CACHE_TTL", time.Minute),

		KafkaBrokers: getList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout-outbox"),

		BreakerFailures:    uint32(getInt("BREAKER_FAILURES", 5)),
		BreakerOpenTimeout: getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_BASE_URL %q is not an absolute url", c.BackendBaseURL))
	}
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		errs = append(errs, fmt.Errorf("HTTP_PORT %q is not a number", c.HTTPPort))
	}
	if c.RequestTimeout <= 0 || c.SubmitTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT and SUBMIT_TIMEOUT must be positive"))
	}
	if c.BreakerFailures == 0 {
		errs = append(errs, errors.New("BREAKER_FAILURES must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
