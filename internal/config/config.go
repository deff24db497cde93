// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAPIVersion is the metadata API version used when none is configured.
const DefaultAPIVersion = "v61.0"

// Config holds the resolved configuration.
type Config struct {
	// Target environment (production or sandbox)
	Environment Environment `json:"environment"`

	// OAuth client credentials
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`

	// API settings
	APIVersion string `json:"api_version"`

	// Local paths
	CacheDir string `json:"cache_dir"`

	// Output settings
	Format string `json:"format"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Sandbox  bool
	CacheDir string
	Format   string
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		Environment: Production,
		APIVersion:  DefaultAPIVersion,
		CacheDir:    filepath.Join(cacheDir, "sfschema"),
		Format:      "auto",
		Sources:     make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > global file > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	if v, ok := fileCfg["environment"].(string); ok && v != "" {
		if env, err := ParseEnvironment(v); err == nil {
			cfg.Environment = env
			cfg.Sources["environment"] = string(source)
		}
	}
	if v, ok := fileCfg["client_id"].(string); ok && v != "" {
		cfg.ClientID = v
		cfg.Sources["client_id"] = string(source)
	}
	if v, ok := fileCfg["client_secret"].(string); ok && v != "" {
		cfg.ClientSecret = v
		cfg.Sources["client_secret"] = string(source)
	}
	if v, ok := fileCfg["api_version"].(string); ok && v != "" {
		cfg.APIVersion = v
		cfg.Sources["api_version"] = string(source)
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SFSCHEMA_ENVIRONMENT"); v != "" {
		if env, err := ParseEnvironment(strings.ToLower(v)); err == nil {
			cfg.Environment = env
			cfg.Sources["environment"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SFSCHEMA_CLIENT_ID"); v != "" {
		cfg.ClientID = v
		cfg.Sources["client_id"] = string(SourceEnv)
	}
	if v := os.Getenv("SFSCHEMA_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
		cfg.Sources["client_secret"] = string(SourceEnv)
	}
	if v := os.Getenv("SFSCHEMA_API_VERSION"); v != "" {
		cfg.APIVersion = v
		cfg.Sources["api_version"] = string(SourceEnv)
	}
	if v := os.Getenv("SFSCHEMA_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(SourceEnv)
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Sandbox {
		cfg.Environment = Sandbox
		cfg.Sources["environment"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Set persists a single key into the global config file.
func Set(key, value string) error {
	path := GlobalConfigPath()

	fileCfg := map[string]any{}
	if data, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: trusted config path
		_ = json.Unmarshal(data, &fileCfg)
	}

	switch key {
	case "environment":
		env, err := ParseEnvironment(value)
		if err != nil {
			return err
		}
		fileCfg[key] = string(env)
	case "client_id", "client_secret", "api_version", "cache_dir", "format":
		fileCfg[key] = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	if err := os.MkdirAll(GlobalConfigDir(), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileCfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Get reads a single key from the global config file. Returns "" when the
// key is unset.
func Get(key string) string {
	data, err := os.ReadFile(GlobalConfigPath()) //nolint:gosec // G304: trusted config path
	if err != nil {
		return ""
	}
	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return ""
	}
	if v, ok := fileCfg[key].(string); ok {
		return v
	}
	return ""
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	if dir := os.Getenv("SFSCHEMA_CONFIG_DIR"); dir != "" {
		return dir
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "sfschema")
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}
