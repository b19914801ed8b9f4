// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

// GatewayConfig provides settings for the call gateway client.
type GatewayConfig interface {
	GetGatewayBaseURL() string
	GetGatewayTimeout() time.Duration
}

// CRMConfig provides settings for the lead store client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMTimeout() time.Duration
	GetLeadFields() string
}

// QueueConfig provides settings for the lead queue.
type QueueConfig interface {
	GetQueuePageSize() int
	GetQueueLowWater() int
	GetDefaultViewID() string
}

// CallConfig provides settings for the call session coordinator.
type CallConfig interface {
	GetHangupPollInterval() time.Duration
	GetHangupPollTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	RateLimitPerSecond float64
	RateLimitBurst     int
	GatewayBaseURL     string
	GatewayTimeout     time.Duration
	CRMBaseURL         string
	CRMTimeout         time.Duration
	LeadFields         string
	QueuePageSize      int
	QueueLowWater      int
	DefaultViewID      string
	HangupPollInterval time.Duration
	HangupPollTimeout  time.Duration
}

// Interface implementations.

func (c *Config) GetHTTPAddr() string           { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool         { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string      { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool       { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerSecond() float64 { return c.RateLimitPerSecond }
func (c *Config) GetRateLimitBurst() int        { return c.RateLimitBurst }

func (c *Config) GetGatewayBaseURL() string        { return c.GatewayBaseURL }
func (c *Config) GetGatewayTimeout() time.Duration { return c.GatewayTimeout }

func (c *Config) GetCRMBaseURL() string        { return c.CRMBaseURL }
func (c *Config) GetCRMTimeout() time.Duration { return c.CRMTimeout }
func (c *Config) GetLeadFields() string        { return c.LeadFields }

func (c *Config) GetQueuePageSize() int    { return c.QueuePageSize }
func (c *Config) GetQueueLowWater() int    { return c.QueueLowWater }
func (c *Config) GetDefaultViewID() string { return c.DefaultViewID }

func (c *Config) GetHangupPollInterval() time.Duration { return c.HangupPollInterval }
func (c *Config) GetHangupPollTimeout() time.Duration  { return c.HangupPollTimeout }

// defaultLeadFields are the CRM field API names requested on every list fetch.
// Email must be forced here or the store omits it from list payloads.
const defaultLeadFields = "id,First_Name,Last_Name,Full_Name,Phone,Company,Lead_Status,Email"

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitPerSecond: mustFloat(getEnv("RATE_LIMIT_PER_SECOND", "20")),
		RateLimitBurst:     mustInt(getEnv("RATE_LIMIT_BURST", "40")),
		GatewayBaseURL:     getEnv("GATEWAY_BASE_URL", ""),
		GatewayTimeout:     mustDuration(getEnv("GATEWAY_TIMEOUT", "10s")),
		CRMBaseURL:         getEnv("CRM_BASE_URL", ""),
		CRMTimeout:         mustDuration(getEnv("CRM_TIMEOUT", "10s")),
		LeadFields:         getEnv("LEAD_FIELDS", defaultLeadFields),
		QueuePageSize:      mustInt(getEnv("QUEUE_PAGE_SIZE", "200")),
		QueueLowWater:      mustInt(getEnv("QUEUE_LOW_WATER", "20")),
		DefaultViewID:      getEnv("DEFAULT_VIEW_ID", ""),
		HangupPollInterval: mustDuration(getEnv("HANGUP_POLL_INTERVAL", "750ms")),
		HangupPollTimeout:  mustDuration(getEnv("HANGUP_POLL_TIMEOUT", "15s")),
	}

	if cfg.GatewayBaseURL == "" {
		return nil, fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if cfg.CRMBaseURL == "" {
		return nil, fmt.Errorf("CRM_BASE_URL is required")
	}
	if cfg.QueuePageSize < 1 {
		return nil, fmt.Errorf("QUEUE_PAGE_SIZE must be positive")
	}
	if cfg.QueueLowWater < 0 || cfg.QueueLowWater >= cfg.QueuePageSize {
		return nil, fmt.Errorf("QUEUE_LOW_WATER must be in [0, QUEUE_PAGE_SIZE)")
	}
	if cfg.HangupPollInterval <= 0 || cfg.HangupPollTimeout <= 0 {
		return nil, fmt.Errorf("hang-up poll interval and timeout must be positive")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func mustInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic("invalid integer: " + s)
	}
	return n
}

func mustFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic("invalid float: " + s)
	}
	return f
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic("invalid duration: " + s)
	}
	return d
}
