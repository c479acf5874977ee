package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: NORMWARE_LOG_LEVEL.
const EnvPrefix = "NORMWARE"

// NewViper creates a Viper instance reading configFile, or normware.yaml
// from the standard locations when configFile is empty, with environment
// overrides enabled.
//
// A fresh instance (rather than the global) lets the CLI bind its flags
// without leaking state between commands and tests.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		v.SetConfigFile(found)
	} else {
		// No file: ReadInConfig returns ConfigFileNotFoundError, which
		// Load treats as "environment only".
		v.SetConfigName("normware")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for keys Viper knows about.
	for _, key := range []string{"schemas", "journal", "log_level", "format"} {
		_ = v.BindEnv(key)
	}
	return v
}

// findConfigFile looks for normware.yaml or .yml in the working directory,
// then in ~/.normware.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	return findConfigFileInPaths([]string{".", filepath.Join(home, ".normware")})
}

// findConfigFileInPaths returns the first normware.yaml/.yml found in paths.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "normware"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Load reads the configuration, applies defaults and validates it.
// A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
