// Package config loads the core's tunables from flags and environment
// variables, read once at process startup.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every configuration option the service needs at startup.
type Config struct {
	Port     string
	LogLevel string

	// Single-endpoint Redis.
	RedisURL string

	// Comma-separated host:port list for quorum mode. Empty means
	// single-endpoint mode.
	RedisNodes string

	// Relational store.
	DatabaseURL    string
	DBPoolSize     int
	DBPoolOverflow int
	DBPoolTimeout  time.Duration

	// Lock tuning.
	LockTimeoutSeconds int
	LockRetryAttempts  int
	LockRetryDelayMS   int

	// ClockDriftBudget bounds the quorum lock's end-of-critical-section
	// re-check: a decrement is only declared committed if elapsed time
	// stays within TTL minus this budget.
	ClockDriftBudget time.Duration
}

// New returns a Config populated with defaults; call ParseFlags to layer
// flags and environment variables on top.
func New() *Config {
	return &Config{
		Port:               "8080",
		LogLevel:           "info",
		RedisURL:           "localhost:6379",
		RedisNodes:         "",
		DatabaseURL:        "postgres://localhost:5432/stockguard?sslmode=disable",
		DBPoolSize:         50,
		DBPoolOverflow:     100, // burst up to 150 total
		DBPoolTimeout:      60 * time.Second,
		LockTimeoutSeconds: 10,
		LockRetryAttempts:  3,
		LockRetryDelayMS:   100,
		ClockDriftBudget:   250 * time.Millisecond,
	}
}

// ParseFlags registers the built-in flags, parses them, then applies
// environment-variable overrides on top (env wins).
func (c *Config) ParseFlags() {
	flag.StringVar(&c.Port, "port", c.Port, "Port to listen on")
	flag.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Single-endpoint Redis host:port")
	flag.StringVar(&c.RedisNodes, "redis-nodes", c.RedisNodes, "Comma-separated Redis host:port list for quorum mode")
	flag.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "Postgres connection URL")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level")
	flag.IntVar(&c.LockTimeoutSeconds, "lock-timeout-seconds", c.LockTimeoutSeconds, "Lease TTL in seconds")
	flag.IntVar(&c.LockRetryAttempts, "lock-retry-attempts", c.LockRetryAttempts, "Bound on lock acquire retries")
	flag.IntVar(&c.LockRetryDelayMS, "lock-retry-delay-ms", c.LockRetryDelayMS, "Fixed delay between lock acquire retries")
	flag.IntVar(&c.DBPoolSize, "db-pool-size", c.DBPoolSize, "Baseline relational pool size")
	flag.IntVar(&c.DBPoolOverflow, "db-pool-overflow", c.DBPoolOverflow, "Relational pool burst overflow")
	flag.DurationVar(&c.DBPoolTimeout, "db-pool-timeout", c.DBPoolTimeout, "Timeout for the startup relational connectivity check (pool checkout itself is not bounded by it)")

	flag.Parse()

	c.LoadEnvVars()
}

// LoadEnvVars overrides the current config with any set environment
// variables. Exported so tests and embedders can apply env without
// re-parsing os.Args.
func (c *Config) LoadEnvVars() {
	if v, ok := lookupNonEmpty("PORT"); ok {
		c.Port = v
	}
	if v, ok := lookupNonEmpty("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupNonEmpty("REDIS_URL"); ok {
		c.RedisURL = v
	}
	if v, ok := lookupNonEmpty("REDIS_NODES"); ok {
		c.RedisNodes = v
	}
	if v, ok := lookupNonEmpty("DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := lookupNonEmpty("LOCK_TIMEOUT_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LockTimeoutSeconds = n
		}
	}
	if v, ok := lookupNonEmpty("LOCK_RETRY_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LockRetryAttempts = n
		}
	}
	if v, ok := lookupNonEmpty("LOCK_RETRY_DELAY_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LockRetryDelayMS = n
		}
	}
}

func lookupNonEmpty(name string) (string, bool) {
	v, found := os.LookupEnv(name)
	if !found || v == "" {
		return "", false
	}
	return v, true
}

// RedisNodeList parses RedisNodes into a slice of host:port strings.
// Whitespace around entries is trimmed; empty entries are skipped.
func (c *Config) RedisNodeList() []string {
	if c.RedisNodes == "" {
		return nil
	}
	parts := strings.Split(c.RedisNodes, ",")
	nodes := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nodes = append(nodes, p)
		}
	}
	return nodes
}

// QuorumMode reports whether the quorum lock should be used instead of the
// single-endpoint lock.
func (c *Config) QuorumMode() bool {
	return len(c.RedisNodeList()) > 0
}

// LockTimeout returns the lease TTL as a time.Duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// LockRetryDelay returns the fixed retry delay as a time.Duration.
func (c *Config) LockRetryDelay() time.Duration {
	return time.Duration(c.LockRetryDelayMS) * time.Millisecond
}
