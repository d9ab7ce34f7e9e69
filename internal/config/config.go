package config

import (
	"os"
	"path/filepath"
)

// Config holds client configuration values.
type Config struct {
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`
	APIURL    string `mapstructure:"api_url" yaml:"api_url"`
	TokenPath string `mapstructure:"token_path" yaml:"token_path"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL: "ws://localhost:8080/ws/chat/",
		APIURL:    "http://localhost:8080",
		TokenPath: defaultTokenPath(),
		LogLevel:  "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.TokenPath != "" {
		c.TokenPath = other.TokenPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".finchat-token"
	}
	return filepath.Join(dir, "finchat", "token")
}
