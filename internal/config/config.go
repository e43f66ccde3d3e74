// Package config loads codegraph settings.
//
// Precedence: command-line flags > CG_* environment variables > codegraph.yml
// (discovered upward from the working directory) > built-in defaults. Only
// the values the core honors are configurable: the database path, the actor,
// broker defaults, and the event bus mailbox bound.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file codegraph looks for.
const FileName = "codegraph.yml"

// Defaults the core honors.
const (
	DefaultDBPath          = "codegraph.db"
	DefaultWaitTimeoutMs   = 300000
	DefaultHistoryCapacity = 1000
	DefaultMailboxSize     = 256
)

// Config is the resolved configuration.
type Config struct {
	DBPath          string `yaml:"db" mapstructure:"db"`
	Actor           string `yaml:"actor" mapstructure:"actor"`
	WaitTimeoutMs   int64  `yaml:"wait-timeout-ms" mapstructure:"wait-timeout-ms"`
	HistoryCapacity int    `yaml:"history-capacity" mapstructure:"history-capacity"`
	MailboxSize     int    `yaml:"mailbox-size" mapstructure:"mailbox-size"`
}

// Load resolves configuration from file, environment, and defaults.
// A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("db", DefaultDBPath)
	v.SetDefault("actor", defaultActor())
	v.SetDefault("wait-timeout-ms", DefaultWaitTimeoutMs)
	v.SetDefault("history-capacity", DefaultHistoryCapacity)
	v.SetDefault("mailbox-size", DefaultMailboxSize)

	v.SetEnvPrefix("CG")
	v.AutomaticEnv()
	// CG_WAIT_TIMEOUT_MS etc.; viper keys use dashes.
	for key, env := range map[string]string{
		"db":               "CG_DB",
		"actor":            "CG_ACTOR",
		"wait-timeout-ms":  "CG_WAIT_TIMEOUT_MS",
		"history-capacity": "CG_HISTORY_CAPACITY",
		"mailbox-size":     "CG_MAILBOX_SIZE",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// findConfigFile walks upward from the working directory looking for
// codegraph.yml, stopping at the filesystem root.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func defaultActor() string {
	if actor := os.Getenv("CG_ACTOR"); actor != "" {
		return actor
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// WriteDefault writes a codegraph.yml with the built-in defaults to dir.
// It refuses to overwrite an existing file.
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists", path)
	}

	cfg := Config{
		DBPath:          DefaultDBPath,
		Actor:           defaultActor(),
		WaitTimeoutMs:   DefaultWaitTimeoutMs,
		HistoryCapacity: DefaultHistoryCapacity,
		MailboxSize:     DefaultMailboxSize,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", fmt.Errorf("config: encode: %w", err)
	}
	header := []byte("# codegraph configuration. Values here are overridden by CG_* env vars and flags.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
