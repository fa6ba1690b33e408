// Package config provides configuration management for go-xmlsign.
// It supports loading configuration from YAML files and environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration structure.
// It includes settings for signing, logging and the HTTP signing service.
type Config struct {
	Signing SigningConfig `yaml:"signing"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// SigningConfig controls how templates are located and identifiers
// registered. The defaults reproduce the certificate-block template layout
// this tool was built for; all values can be overridden for other schemas.
type SigningConfig struct {
	// IDAttribute is the attribute name carrying unique identifiers.
	IDAttribute string `yaml:"id_attribute"`

	// CertificatesNamespace is the namespace URI of the certificates
	// section whose identifiers are registered before signing.
	CertificatesNamespace string `yaml:"certificates_namespace"`

	// CertificatesContainer and CertificateNode are the local names of the
	// certificates container element and the certificate element within it.
	CertificatesContainer string `yaml:"certificates_container"`
	CertificateNode       string `yaml:"certificate_node"`

	// NamespaceBindings is a whitespace-separated prefix=uri list scoping
	// the signature query.
	NamespaceBindings string `yaml:"namespace_bindings"`

	// QueryExpression selects the signature templates to sign.
	QueryExpression string `yaml:"query_expression"`
}

// LoggingConfig contains logging configuration settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ServerConfig contains HTTP signing service configuration settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	RateLimitRPS int    `yaml:"rate_limit_rps"`
	KeyFile      string `yaml:"key_file"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Signing: SigningConfig{
			IDAttribute:           "id",
			CertificatesNamespace: "http://vde.com/fnn/stb/certificates/1.4.0",
			CertificatesContainer: "certificates",
			CertificateNode:       "certificate",
			NamespaceBindings:     "sig=http://www.w3.org/2000/09/xmldsig#",
			QueryExpression:       "//sig:Signature",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         "6002",
			RateLimitRPS: 100,
		},
	}
}

// LoadConfig loads configuration from a YAML file and applies environment
// variable overrides. It returns the merged configuration or an error if
// loading fails.
//
// Environment variables override configuration file values using the GX_
// prefix:
//   - GX_ID_ATTRIBUTE, GX_NS_BINDINGS, GX_QUERY for signing settings
//   - GX_LOG_LEVEL, GX_LOG_FORMAT, GX_LOG_OUTPUT for logging
//   - GX_HOST, GX_PORT, GX_RATE_LIMIT_RPS, GX_KEY_FILE for the server
//
// If configPath is empty, only default values and environment variables are
// used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables take precedence over config file
// values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GX_ID_ATTRIBUTE"); v != "" {
		cfg.Signing.IDAttribute = v
	}
	if v := os.Getenv("GX_NS_BINDINGS"); v != "" {
		cfg.Signing.NamespaceBindings = v
	}
	if v := os.Getenv("GX_QUERY"); v != "" {
		cfg.Signing.QueryExpression = v
	}

	if v := os.Getenv("GX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GX_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}

	if v := os.Getenv("GX_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GX_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GX_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitRPS = rps
		}
	}
	if v := os.Getenv("GX_KEY_FILE"); v != "" {
		cfg.Server.KeyFile = v
	}
}

// Validate checks if the configuration is valid.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	if c.Signing.IDAttribute == "" {
		return fmt.Errorf("signing id_attribute cannot be empty")
	}
	if c.Signing.QueryExpression == "" {
		return fmt.Errorf("signing query_expression cannot be empty")
	}
	if c.Signing.CertificatesContainer == "" || c.Signing.CertificateNode == "" {
		return fmt.Errorf("certificates container and node names cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	return nil
}
