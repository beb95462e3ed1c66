package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.fabmirror/fabmirror.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version int           `yaml:"version"`
	Fabric  FabricConfig  `yaml:"fabric"`
	Catalog CatalogConfig `yaml:"catalog"`
	SQL     SQLConfig     `yaml:"sql,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`
}

// FabricConfig defines the remote Fabric API connection.
type FabricConfig struct {
	BaseURL        string `yaml:"base_url"`
	TenantID       string `yaml:"tenant_id,omitempty"`
	ClientID       string `yaml:"client_id,omitempty"`
	Token          string `yaml:"token,omitempty"` // bearer token or secret reference
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	Retries        int    `yaml:"retries,omitempty"` // retries after the first attempt on transient HTTP errors
}

// CatalogConfig defines the local catalog store.
type CatalogConfig struct {
	Backend string `yaml:"backend"` // postgres or mongodb
	DSN     string `yaml:"dsn"`
	// Mongo only: database holding the catalog collections.
	Database string `yaml:"database,omitempty"`
}

// SQLConfig defines how trial queries and introspection reach SQL endpoints.
type SQLConfig struct {
	TimeoutSeconds  int  `yaml:"timeout_seconds,omitempty"` // per-query, default 60
	TrustServerCert bool `yaml:"trust_server_cert,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level         string `yaml:"level,omitempty"`          // debug, info, warn, error
	Directory     string `yaml:"directory,omitempty"`      // default ~/.fabmirror/logs/
	RetentionDays int    `yaml:"retention_days,omitempty"` // default 30
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Fabric.BaseURL == "" {
		c.Fabric.BaseURL = "https://api.fabric.microsoft.com/v1/"
	}
	if c.Fabric.TimeoutSeconds == 0 {
		c.Fabric.TimeoutSeconds = 45
	}
	if c.Fabric.Retries == 0 {
		c.Fabric.Retries = 3
	}
	if c.Catalog.Backend == "" {
		c.Catalog.Backend = "postgres"
	}
	if c.Catalog.Database == "" {
		c.Catalog.Database = "fabmirror"
	}
	if c.SQL.TimeoutSeconds == 0 {
		c.SQL.TimeoutSeconds = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.fabmirror/logs/")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 30
	}
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Fabric.Token, err = ResolveValue(c.Fabric.Token)
	if err != nil {
		return fmt.Errorf("fabric token: %w", err)
	}
	c.Catalog.DSN, err = ResolveValue(c.Catalog.DSN)
	if err != nil {
		return fmt.Errorf("catalog dsn: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
