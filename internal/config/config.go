// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Session       SessionConfig
	Organization  OrganizationConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	StoreDriver   string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// Public* apply to the anonymous report endpoint, per client IP.
	PublicRequestsPerSecond float64
	PublicBurst             int
}

// ServerConfig holds HTTP and gRPC server configuration
type ServerConfig struct {
	Host            string
	Port            string
	GRPCPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MigrateUser owns the schema and the locator function. It defaults
	// to User; serving must use a role without SUPERUSER or BYPASSRLS.
	MigrateUser     string
	MigratePassword string
}

// Migrator returns the settings the migrate command connects with.
func (d DatabaseConfig) Migrator() DatabaseConfig {
	m := d
	if d.MigrateUser != "" {
		m.User = d.MigrateUser
		m.Password = d.MigratePassword
	}
	return m
}

// DSN returns the connection string for pgx.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// SessionConfig holds session token and cookie configuration
type SessionConfig struct {
	Secret         string
	Issuer         string
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite string
	Lifetime       time.Duration
}

// OrganizationConfig controls organization resolution
type OrganizationConfig struct {
	BaseDomain       string
	DefaultSubdomain string
	SelectorHeader   string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	OTELEndpoint   string
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds password hashing and lockout configuration
type SecurityConfig struct {
	Argon2Memory       uint32
	Argon2Iterations   uint32
	Argon2Parallelism  uint8
	Argon2SaltLength   uint32
	Argon2KeyLength    uint32
	LockoutMaxAttempts int
	LockoutDuration    time.Duration
}

var defaults = map[string]any{
	"SERVER_HOST":             "0.0.0.0",
	"SERVER_PORT":             "8080",
	"GRPC_PORT":               "9090",
	"SERVER_READ_TIMEOUT":     "15s",
	"SERVER_WRITE_TIMEOUT":    "15s",
	"SERVER_IDLE_TIMEOUT":     "60s",
	"SERVER_REQUEST_TIMEOUT":  "30s",
	"SERVER_SHUTDOWN_TIMEOUT": "10s",

	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "pinpoint",
	"DB_PASSWORD":          "",
	"DB_NAME":              "pinpoint",
	"DB_SSLMODE":           "disable",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "5m",
	"DB_MIGRATE_USER":      "",
	"DB_MIGRATE_PASSWORD":  "",

	"SESSION_SECRET":           "",
	"SESSION_ISSUER":           "pinpoint",
	"SESSION_COOKIE_NAME":      "pinpoint_session",
	"SESSION_COOKIE_DOMAIN":    "",
	"SESSION_COOKIE_PATH":      "/",
	"SESSION_COOKIE_SECURE":    false,
	"SESSION_COOKIE_SAME_SITE": "Lax",
	"SESSION_LIFETIME":         "24h",

	"PINPOINT_BASE_DOMAIN":       "",
	"PINPOINT_DEFAULT_SUBDOMAIN": "",
	"PINPOINT_SELECTOR_HEADER":   "X-Organization",

	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"OTEL_ENABLED":         false,
	"OTEL_ENDPOINT":        "localhost:4318",
	"OTEL_SERVICE_NAME":    "pinpoint",
	"OTEL_SERVICE_VERSION": "0.1.0",

	"ARGON2_MEMORY":                 65536,
	"ARGON2_ITERATIONS":             3,
	"ARGON2_PARALLELISM":            4,
	"ARGON2_SALT_LENGTH":            16,
	"ARGON2_KEY_LENGTH":             32,
	"SECURITY_LOCKOUT_MAX_ATTEMPTS": 5,
	"SECURITY_LOCKOUT_DURATION":     "15m",

	"RATELIMIT_RPS":          10,
	"RATELIMIT_BURST":        20,
	"RATELIMIT_PUBLIC_RPS":   0.2,
	"RATELIMIT_PUBLIC_BURST": 5,

	"STORE_DRIVER": DriverPostgres,
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			GRPCPort:        v.GetString("GRPC_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			RequestTimeout:  v.GetDuration("SERVER_REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			MigrateUser:     v.GetString("DB_MIGRATE_USER"),
			MigratePassword: v.GetString("DB_MIGRATE_PASSWORD"),
		},
		Session: SessionConfig{
			Secret:         v.GetString("SESSION_SECRET"),
			Issuer:         v.GetString("SESSION_ISSUER"),
			CookieName:     v.GetString("SESSION_COOKIE_NAME"),
			CookieDomain:   v.GetString("SESSION_COOKIE_DOMAIN"),
			CookiePath:     v.GetString("SESSION_COOKIE_PATH"),
			CookieSecure:   v.GetBool("SESSION_COOKIE_SECURE"),
			CookieSameSite: v.GetString("SESSION_COOKIE_SAME_SITE"),
			Lifetime:       v.GetDuration("SESSION_LIFETIME"),
		},
		Organization: OrganizationConfig{
			BaseDomain:       v.GetString("PINPOINT_BASE_DOMAIN"),
			DefaultSubdomain: v.GetString("PINPOINT_DEFAULT_SUBDOMAIN"),
			SelectorHeader:   v.GetString("PINPOINT_SELECTOR_HEADER"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       v.GetString("LOG_LEVEL"),
			LogFormat:      v.GetString("LOG_FORMAT"),
			OTELEnabled:    v.GetBool("OTEL_ENABLED"),
			OTELEndpoint:   v.GetString("OTEL_ENDPOINT"),
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
		},
		Security: SecurityConfig{
			Argon2Memory:       v.GetUint32("ARGON2_MEMORY"),
			Argon2Iterations:   v.GetUint32("ARGON2_ITERATIONS"),
			Argon2Parallelism:  uint8(v.GetUint("ARGON2_PARALLELISM")),
			Argon2SaltLength:   v.GetUint32("ARGON2_SALT_LENGTH"),
			Argon2KeyLength:    v.GetUint32("ARGON2_KEY_LENGTH"),
			LockoutMaxAttempts: v.GetInt("SECURITY_LOCKOUT_MAX_ATTEMPTS"),
			LockoutDuration:    v.GetDuration("SECURITY_LOCKOUT_DURATION"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:       v.GetFloat64("RATELIMIT_RPS"),
			Burst:                   v.GetInt("RATELIMIT_BURST"),
			PublicRequestsPerSecond: v.GetFloat64("RATELIMIT_PUBLIC_RPS"),
			PublicBurst:             v.GetInt("RATELIMIT_PUBLIC_BURST"),
		},
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.Organization.BaseDomain == "" && c.Organization.DefaultSubdomain != "" {
		errs = append(errs, errors.New("PINPOINT_DEFAULT_SUBDOMAIN requires PINPOINT_BASE_DOMAIN"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATELIMIT_RPS and RATELIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}
