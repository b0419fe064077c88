// Package config loads server configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the full server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Paths   PathsConfig   `yaml:"paths"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// BaseURL is the externally visible origin, used to derive project
	// access URLs.
	BaseURL string `yaml:"baseUrl"`

	// TrustProxyHeader makes the login rate limiter key on the
	// X-Forwarded-For header. Enable only behind a trusted reverse proxy.
	TrustProxyHeader bool `yaml:"trustProxyHeader"`
}

type AuthConfig struct {
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"sessionTtl"`

	// LoginAttempts per LoginWindow bounds brute-force attempts per
	// client address.
	LoginAttempts int           `yaml:"loginAttempts"`
	LoginWindow   time.Duration `yaml:"loginWindow"`
}

type PathsConfig struct {
	// Projects is the directory holding one subdirectory per hosted
	// project, named by project ID.
	Projects string `yaml:"projects"`

	// Metadata is the path of the single registry document.
	Metadata string `yaml:"metadata"`
}

type RuntimeConfig struct {
	// Enabled controls whether hosted projects can be started as
	// isolated container runtime instances.
	Enabled bool `yaml:"enabled"`

	// Image is the static file server image run per project.
	Image string `yaml:"image"`

	// Timeout bounds every call to the container runtime backend.
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load builds the configuration. A YAML file named by STATICNEST_CONFIG is
// applied over the defaults, then individual environment variables override
// both.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Auth: AuthConfig{
			Username:      "admin",
			Password:      "admin123",
			SessionTTL:    24 * time.Hour,
			LoginAttempts: 5,
			LoginWindow:   15 * time.Minute,
		},
		Paths: PathsConfig{
			Projects: "projects",
			Metadata: "metadata.json",
		},
		Runtime: RuntimeConfig{
			Enabled: true,
			Image:   "nginx:alpine",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("STATICNEST_CONFIG"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if baseURL := os.Getenv("APP_BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if trust := os.Getenv("TRUST_PROXY_HEADER"); trust != "" {
		val, err := strconv.ParseBool(trust)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRUST_PROXY_HEADER: %w", err)
		}
		cfg.Server.TrustProxyHeader = val
	}
	if username := os.Getenv("APP_USERNAME"); username != "" {
		cfg.Auth.Username = username
	}
	if password := os.Getenv("APP_PASSWORD"); password != "" {
		cfg.Auth.Password = password
	}
	if projects := os.Getenv("PROJECTS_PATH"); projects != "" {
		cfg.Paths.Projects = projects
	}
	if metadata := os.Getenv("METADATA_PATH"); metadata != "" {
		cfg.Paths.Metadata = metadata
	}
	if enabled := os.Getenv("RUNTIME_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RUNTIME_ENABLED: %w", err)
		}
		cfg.Runtime.Enabled = val
	}
	if image := os.Getenv("RUNTIME_IMAGE"); image != "" {
		cfg.Runtime.Image = image
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
