package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Automation AutomationConfig `koanf:"automation"`
	Storage    StorageConfig    `koanf:"storage"`
}

type ServerConfig struct {
	Port             int `koanf:"port"`
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

type AutomationConfig struct {
	// Endpoint is the workflow-automation webhook URL.
	Endpoint string `koanf:"endpoint"`
	APIKey   string `koanf:"api_key"`
	// TimeoutMS bounds the whole exchange, including stream consumption.
	TimeoutMS int `koanf:"timeout_ms"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// Load reads config.yaml when present, then environment variables with
// the SUPPORT_ prefix (double underscore as the key separator), which
// override the file.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("SUPPORT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SUPPORT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout_ms") {
		k.Set("server.request_timeout_ms", 150000)
	}
	if !k.Exists("automation.timeout_ms") {
		k.Set("automation.timeout_ms", 120000)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/support.db")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
