// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

// Package config loads and validates application configuration.
//
// Configuration is layered with clear precedence: environment variables
// override an optional YAML file, which overrides built-in defaults. The
// resulting Config value is passed explicitly to every component that needs
// it; nothing in the codebase reads configuration ambiently.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Capacity CapacityConfig `koanf:"capacity"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
//
// Environment Variables:
//   - HTTP_HOST: Listen address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8640)
//   - HTTP_TIMEOUT: Request timeout (default: 30s)
//   - BASE_URL: Public base URL used in links sent by email
//   - ENVIRONMENT: development or production (default: development)
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	BaseURL     string        `koanf:"base_url"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB storage configuration.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path (default: /data/stemma.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit for the database (default: 1GB)
//   - DUCKDB_THREADS: Worker threads, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SecurityConfig holds authentication and rate limiting configuration.
//
// Environment Variables:
//   - JWT_SECRET: HMAC signing secret, minimum 32 characters (required)
//   - ACCESS_TOKEN_TTL: Access token lifetime (default: 30m)
//   - REFRESH_TOKEN_TTL: Refresh token lifetime (default: 168h)
//   - BCRYPT_COST: bcrypt work factor (default: 12)
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: per-IP request budget
//   - DISABLE_RATE_LIMIT: disable rate limiting entirely (default: false)
//   - CORS_ORIGINS: comma-separated allowed origins (default: *)
//   - TOKEN_STORE_PATH: Badger directory for revocation and verification
//     tokens (default: /data/tokens)
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	AccessTokenTTL    time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `koanf:"refresh_token_ttl"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TokenStorePath    string        `koanf:"token_store_path"`
}

// SMTPConfig holds outbound mail configuration. Mail is optional; when
// disabled, verification and notification messages are logged and dropped.
//
// Environment Variables:
//   - SMTP_ENABLED, SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD
//   - SMTP_FROM: Sender address (required when enabled)
//   - SMTP_FROM_NAME: Display name (default: Stemma)
//   - SMTP_USE_TLS: STARTTLS after connect (default: true)
//   - SMTP_TIMEOUT: Dial/send timeout (default: 30s)
//   - OPERATOR_EMAIL: Recipient for feedback and waitlist notifications
type SMTPConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	From          string        `koanf:"from"`
	FromName      string        `koanf:"from_name"`
	UseTLS        bool          `koanf:"use_tls"`
	Timeout       time.Duration `koanf:"timeout"`
	OperatorEmail string        `koanf:"operator_email"`
}

// CapacityConfig gates new registrations.
//
// Environment Variables:
//   - MAX_ACTIVE_USERS: Registration cap, 0 = unlimited (default: 0)
//   - ENABLE_WAITLIST: Offer the waitlist when at capacity (default: false)
type CapacityConfig struct {
	MaxActiveUsers  int  `koanf:"max_active_users"`
	WaitlistEnabled bool `koanf:"waitlist_enabled"`
}

// LoggingConfig holds log output configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
// Production tightens validation (JWT secret strength, CORS wildcard).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateSMTP(); err != nil {
		return err
	}
	if err := c.validateCapacity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.BaseURL != "" {
		if err := validateHTTPURL(c.Server.BaseURL, "BASE_URL"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateJWTSecret(); err != nil {
		return err
	}
	if c.Security.AccessTokenTTL <= 0 || c.Security.RefreshTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive")
	}
	if c.Security.RefreshTokenTTL < c.Security.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	return c.validateCORS()
}

func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if isPlaceholderSecret(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateCORS rejects wildcard origins in production. Wildcard CORS plus
// bearer authentication lets any origin replay stolen credentials.
func (c *Config) validateCORS() error {
	if !c.IsProduction() {
		return nil
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production; " +
				"set specific origins: CORS_ORIGINS=https://app.example.com")
		}
	}
	return nil
}

func (c *Config) validateSMTP() error {
	if !c.SMTP.Enabled {
		return nil
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when SMTP_ENABLED=true")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_ENABLED=true")
	}
	if c.SMTP.Timeout <= 0 {
		return fmt.Errorf("SMTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCapacity() error {
	if c.Capacity.MaxActiveUsers < 0 {
		return fmt.Errorf("MAX_ACTIVE_USERS must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// validateHTTPURL checks that a value parses as an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

// placeholderSecrets are substrings that indicate an example or template
// value left in place rather than a generated secret.
var placeholderSecrets = []string{
	"changeme",
	"change-me",
	"your-secret",
	"example",
	"placeholder",
}

func isPlaceholderSecret(secret string) bool {
	lower := strings.ToLower(secret)
	for _, p := range placeholderSecrets {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
