// Package config loads and validates the vaulton server configuration
// from a YAML file with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vaulton/vaulton/server"
)

// Config is the top-level configuration for the vaulton server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig configures the HTTP listener and authorization behavior.
type ServerConfig struct {
	// ListenAddress is the host:port the HTTP server binds to
	ListenAddress string `yaml:"listen_address"`

	// Issuer is the server's issuer identifier (base URL)
	Issuer string `yaml:"issuer" validate:"required,url"`

	// LoginURL is the absolute URL of the login page
	LoginURL string `yaml:"login_url" validate:"required,url"`

	// AuthRequestTTLSeconds is how long pending authorization requests
	// stay valid (default 600)
	AuthRequestTTLSeconds int64 `yaml:"auth_request_ttl_seconds" validate:"gte=0"`

	// SupportedScopes restricts which scopes any client may request.
	// Empty means no server-level restriction.
	SupportedScopes []string `yaml:"supported_scopes"`

	// TrustProxy enables X-Forwarded-For / X-Real-IP handling
	TrustProxy bool `yaml:"trust_proxy"`

	// TrustedProxyCount is the number of proxies in front of the server
	TrustedProxyCount int `yaml:"trusted_proxy_count" validate:"gte=0"`

	// MaxClientsPerIP limits dynamic client registrations per IP
	MaxClientsPerIP int `yaml:"max_clients_per_ip" validate:"gte=0"`

	// AllowInsecureHTTP permits a non-localhost http:// issuer
	AllowInsecureHTTP bool `yaml:"allow_insecure_http"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is one of "memory", "valkey", or "mysql" (default "memory")
	Backend string `yaml:"backend" validate:"omitempty,oneof=memory valkey mysql"`

	Valkey ValkeyConfig `yaml:"valkey"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// ValkeyConfig configures the Valkey backend. Required when the
// storage backend is "valkey".
type ValkeyConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MySQLConfig configures the MySQL backend. Required when the storage
// backend is "mysql".
type MySQLConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port" validate:"gte=0,lte=65535"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `yaml:"max_idle_conns" validate:"gte=-1"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error" (default "info")
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Format is "text" or "json" (default "text")
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// TelemetryConfig configures OpenTelemetry instrumentation.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// RateLimitConfig configures per-IP request rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained per-IP rate (default 10)
	RequestsPerSecond int `yaml:"requests_per_second" validate:"gte=0"`

	// Burst is the per-IP burst allowance (default 20)
	Burst int `yaml:"burst" validate:"gte=0"`
}

// Load reads the YAML config file at path, applies environment variable
// overrides and defaults, and validates the result. A .env file in the
// working directory is loaded first if present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnvOverrides lets secrets and deployment specifics come from the
// environment instead of the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VAULTON_LISTEN_ADDRESS"); v != "" {
		config.Server.ListenAddress = v
	}
	if v := os.Getenv("VAULTON_ISSUER"); v != "" {
		config.Server.Issuer = v
	}
	if v := os.Getenv("VAULTON_LOGIN_URL"); v != "" {
		config.Server.LoginURL = v
	}
	if v := os.Getenv("VAULTON_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("VAULTON_VALKEY_ADDRESS"); v != "" {
		config.Storage.Valkey.Address = v
	}
	if v := os.Getenv("VAULTON_VALKEY_PASSWORD"); v != "" {
		config.Storage.Valkey.Password = v
	}
	if v := os.Getenv("VAULTON_MYSQL_PASSWORD"); v != "" {
		config.Storage.MySQL.Password = v
	}
	if v := os.Getenv("VAULTON_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("VAULTON_TELEMETRY_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			config.Telemetry.Enabled = enabled
		}
	}
}

func applyDefaults(config *Config) {
	if config.Server.ListenAddress == "" {
		config.Server.ListenAddress = ":8080"
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = "memory"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	if config.RateLimit.RequestsPerSecond == 0 {
		config.RateLimit.RequestsPerSecond = 10
	}
	if config.RateLimit.Burst == 0 {
		config.RateLimit.Burst = 20
	}
}

func validate(config *Config) error {
	v := validator.New()
	if err := v.Struct(config); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Cross-field checks validator tags cannot express across nested structs
	switch config.Storage.Backend {
	case "valkey":
		if config.Storage.Valkey.Address == "" {
			return fmt.Errorf("validate config: storage.valkey.address is required for the valkey backend")
		}
	case "mysql":
		if config.Storage.MySQL.Host == "" || config.Storage.MySQL.User == "" || config.Storage.MySQL.Database == "" {
			return fmt.Errorf("validate config: storage.mysql host, user, and database are required for the mysql backend")
		}
	}

	return nil
}

// ServerConfig converts the loaded configuration into the server
// package's config type.
func (c *Config) ServerConfig() *server.Config {
	return &server.Config{
		Issuer:            c.Server.Issuer,
		LoginURL:          c.Server.LoginURL,
		AuthRequestTTL:    c.Server.AuthRequestTTLSeconds,
		SupportedScopes:   c.Server.SupportedScopes,
		TrustProxy:        c.Server.TrustProxy,
		TrustedProxyCount: c.Server.TrustedProxyCount,
		MaxClientsPerIP:   c.Server.MaxClientsPerIP,
		AllowInsecureHTTP: c.Server.AllowInsecureHTTP,
	}
}
