package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig configures one Redis token bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the bucket settings under the given variable
// prefix, e.g. "RATE_LIMIT" reads RATE_LIMIT_CAPACITY.  The booking
// endpoint uses its own stricter bucket under "RESERVE_RATE_LIMIT".
func LoadRateLimitConfig(envPrefix string, def RateLimitConfig) RateLimitConfig {
	k := func(s string) string { return envPrefix + "_" + s }
	cfg := RateLimitConfig{
		Enabled:        envBool(k("ENABLED"), def.Enabled),
		Capacity:       envInt(k("CAPACITY"), def.Capacity),
		RefillTokens:   envInt(k("REFILL_TOKENS"), def.RefillTokens),
		RefillInterval: envDur(k("REFILL_INTERVAL"), def.RefillInterval),
		TTL:            envDur(k("TTL"), def.TTL),
		KeyStrategy:    envStr(k("KEY_STRATEGY"), def.KeyStrategy),
		Prefix:         envStr(k("PREFIX"), def.Prefix),
		Debug:          envBool(k("DEBUG"), def.Debug),
	}
	if b := envInt(k("BURST"), -1); b > 0 {
		cfg.Capacity = b
	}
	if every := envDur(k("REFILL_EVERY"), 0); every > 0 {
		cfg.RefillTokens = 1
		cfg.RefillInterval = every
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// DefaultRateLimit is the general API bucket: 60 requests, one back per second.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true, Capacity: 60, RefillTokens: 1, RefillInterval: time.Second,
		TTL: 10 * time.Minute, KeyStrategy: "ip_user_route", Prefix: "rl",
	}
}

// DefaultReserveRateLimit allows five booking attempts per user, one more
// every twelve seconds.
func DefaultReserveRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true, Capacity: 5, RefillTokens: 1, RefillInterval: 12 * time.Second,
		TTL: 10 * time.Minute, KeyStrategy: "user_route", Prefix: "rl:reserve",
	}
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
