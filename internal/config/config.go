// Package config provides YAML-based configuration for azmcp.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. AZMCP_CONFIG environment variable
//  3. ~/.azmcp/config.yaml
//  4. ./azmcp.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// History configures command history persistence.
	History HistoryConfig `yaml:"history"`

	// Execution configures how Azure CLI commands are spawned.
	Execution ExecutionConfig `yaml:"execution"`

	// Azure configures Azure credential discovery.
	Azure AzureConfig `yaml:"azure"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// AuthToken is the Bearer token for API authentication.
	// Prefer env var AZMCP_AUTH_TOKEN.
	AuthToken string `yaml:"auth_token"`

	// Rate holds per-client rate limit settings.
	Rate RateConfig `yaml:"rate"`
}

// RateConfig holds per-client rate limit settings for the HTTP API.
type RateConfig struct {
	// RPS is the sustained requests-per-second allowance per client IP.
	RPS float64 `yaml:"rps"`
	// Burst is the short-term burst allowance per client IP.
	Burst int `yaml:"burst"`
}

// HistoryConfig holds command history settings.
type HistoryConfig struct {
	// Path is the SQLite database path.
	Path string `yaml:"path"`
	// Disabled turns off history persistence entirely.
	Disabled bool `yaml:"disabled"`
}

// ExecutionConfig holds settings for spawning Azure CLI processes.
type ExecutionConfig struct {
	// Shell is the shell binary used to run commands (default "sh").
	Shell string `yaml:"shell"`
	// Mode selects how commands are spawned: "shell" (default) runs the
	// command string through the shell, "argv" splits it on whitespace
	// and execs directly.
	Mode string `yaml:"mode"`
	// Timeout bounds ordinary command execution, as a Go duration string
	// such as "2m". Empty means no timeout. Login commands are never
	// subject to the timeout.
	Timeout string `yaml:"timeout"`
}

// AzureConfig holds Azure credential discovery settings.
type AzureConfig struct {
	// CredentialsFile is a path to a JSON file with service principal
	// credentials. Its contents become AZURE_CREDENTIALS when that env
	// var is unset. Prefer the env var on shared machines.
	CredentialsFile string `yaml:"credentials_file"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"AZMCP_ADDR", func(c *Config) string { return c.Server.Addr }},
	{"AZMCP_AUTH_TOKEN", func(c *Config) string { return c.Server.AuthToken }},
	{"AZMCP_RATE_RPS", func(c *Config) string { return floatStr(c.Server.Rate.RPS) }},
	{"AZMCP_RATE_BURST", func(c *Config) string { return intStr(c.Server.Rate.Burst) }},
	{"AZMCP_HISTORY_DB", historyDB},
	{"AZMCP_SHELL", func(c *Config) string { return c.Execution.Shell }},
	{"AZMCP_EXEC_MODE", func(c *Config) string { return c.Execution.Mode }},
	{"AZMCP_EXEC_TIMEOUT", func(c *Config) string { return c.Execution.Timeout }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	// The credentials file maps to env indirectly: the env var carries the
	// file CONTENTS, not the path. Same one-way rule applies.
	if cfg.Azure.CredentialsFile != "" && os.Getenv("AZURE_CREDENTIALS") == "" {
		raw, err := os.ReadFile(cfg.Azure.CredentialsFile)
		if err != nil {
			return "", fmt.Errorf("config: failed to read credentials file %s: %w", cfg.Azure.CredentialsFile, err)
		}
		os.Setenv("AZURE_CREDENTIALS", strings.TrimSpace(string(raw)))
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("AZMCP_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".azmcp", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("azmcp.yaml"); err == nil {
		return "azmcp.yaml"
	}

	return ""
}

// historyDB renders the history settings as the single AZMCP_HISTORY_DB
// value, using the "disabled" sentinel understood by the store wiring.
func historyDB(c *Config) string {
	if c.History.Disabled {
		return "disabled"
	}
	return c.History.Path
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
