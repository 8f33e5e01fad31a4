// Package config provides centralized configuration management for
// searchbeam. Values merge in three layers: embedded defaults, an optional
// user config file, and SEARCHBEAM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "embed"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SEARCHBEAM"

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// Load reads configuration using the layered pattern. cfgFile may be empty,
// in which case the default config path is probed and silently skipped when
// absent. Safe to call multiple times (config reload).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := parseDefaults()
	if err != nil {
		return nil, err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgFile = strings.TrimSpace(cfgFile)
	if cfgFile == "" {
		cfgFile = probeDefaultConfigPath()
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe).
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// parseDefaults flattens the embedded defaults into viper keys so file and
// env layers override individual leaves rather than whole sections.
func parseDefaults() (map[string]any, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(defaultsYAML, &tree); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}

	flat := make(map[string]any)
	flatten("", tree, flat)
	return flat, nil
}

func flatten(prefix string, tree map[string]any, out map[string]any) {
	for key, value := range tree {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(path, nested, out)
			continue
		}
		out[path] = value
	}
}

// DefaultConfigPath returns the XDG-style path to the user config file.
func DefaultConfigPath() string {
	base := configHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "searchbeam", "config.yaml")
}

// DefaultStorePath returns the default path to the database file.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./searchbeam.db"
	}
	return filepath.Join(home, ".local", "share", "searchbeam", "searchbeam.db")
}

func probeDefaultConfigPath() string {
	path := DefaultConfigPath()
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func configHome() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return xdg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}
