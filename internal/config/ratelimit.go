package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig configures the Redis token bucket.  The general bucket
// applies to every API route; the checkout bucket is a second, tighter
// bucket in front of order creation and payment verification so one client
// cannot churn seat holds.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // "ip", "user", "ip_user", "ip_user_route"
    Prefix         string

    CheckoutCapacity       int
    CheckoutRefillInterval time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),

        CheckoutCapacity:       envInt("RATE_LIMIT_CHECKOUT_CAPACITY", 10),
        CheckoutRefillInterval: envDur("RATE_LIMIT_CHECKOUT_REFILL_INTERVAL", 6*time.Second),
    }
    if def.Capacity < 1 { def.Capacity = 1 }
    if def.RefillTokens < 1 { def.RefillTokens = 1 }
    if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
    if def.CheckoutCapacity < 1 { def.CheckoutCapacity = 1 }
    if def.CheckoutRefillInterval <= 0 { def.CheckoutRefillInterval = def.RefillInterval }
    minTTL := 5 * def.RefillInterval
    if c := 5 * def.CheckoutRefillInterval; c > minTTL { minTTL = c }
    if def.TTL < minTTL { def.TTL = minTTL }
    return def
}

// Checkout returns the configuration of the checkout bucket.
func (c RateLimitConfig) Checkout() RateLimitConfig {
    out := c
    out.Capacity = c.CheckoutCapacity
    out.RefillTokens = 1
    out.RefillInterval = c.CheckoutRefillInterval
    out.KeyStrategy = "user"
    out.Prefix = c.Prefix + ":checkout"
    return out
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
