// Package config loads the module search directories and logging settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, GMODULE_DIRS=/opt/app/lib:/usr/lib/app.
const EnvPrefix = "GMODULE"

const (
	BackendNative = "native"
	BackendObject = "object"
)

// Config is the loader configuration.
type Config struct {
	// Dirs is the ordered module search list.
	Dirs          []string `mapstructure:"Dirs"`
	Backend       string   `mapstructure:"Backend"`
	Package       string   `mapstructure:"Package"` // object backend package path
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFormat     string   `mapstructure:"LogFormat"`
	LogFile       string   `mapstructure:"LogFile"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
}

// FieldError points at an invalid configuration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Dirs", []string{})
	v.SetDefault("Backend", BackendNative)
	v.SetDefault("Package", "")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogFile", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 3)
	v.SetDefault("LogCompress", false)
}

// Load reads path when it is not empty, then applies GMODULE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeHook splits a single string of directories on the OS list separator.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(string(os.PathListSeparator)),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	for i, d := range c.Dirs {
		if d = strings.TrimSpace(d); d != "" {
			d = filepath.Clean(d)
		}
		c.Dirs[i] = d
	}
}

// Validate rejects empty directories and unknown backends or formats.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	for i, d := range c.Dirs {
		if d == "" {
			return FieldError{Field: fmt.Sprintf("Dirs[%d]", i), Reason: "empty directory"}
		}
	}
	switch c.Backend {
	case BackendNative, BackendObject:
	default:
		return FieldError{Field: "Backend", Reason: "must be native or object"}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return FieldError{Field: "LogFormat", Reason: "must be text or json"}
	}
	if c.LogMaxSize < 0 || c.LogMaxBackups < 0 {
		return FieldError{Field: "LogMaxSize", Reason: "must not be negative"}
	}
	return nil
}
