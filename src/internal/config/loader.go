// FILE: haystackauth/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"haystackauth/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

const envPrefix = "HSAUTH_"

func defaults() *Config {
	return &Config{
		Target: TargetConfig{
			URI: "http://localhost:8080/api/demo",
		},
		Auth: AuthConfig{
			TimeoutMS:       core.DefaultRoundTripTimeout.Milliseconds(),
			MaxAttempts:     core.DefaultMaxAttempts,
			RetryIntervalMS: core.DefaultRetryInterval.Milliseconds(),
		},
		TLS:     DefaultTLSConfig(),
		Logging: DefaultLogConfig(),
	}
}

// Load builds the configuration from defaults, the config file, HSAUTH_*
// environment variables and cliArgs, highest precedence last.
func Load(cliArgs []string) (*Config, error) {
	return LoadFile(GetConfigPath(), cliArgs)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(configPath string, cliArgs []string) (*Config, error) {
	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix(envPrefix).
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		// A missing file is fine, everything else has defaults
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, validateConfig(finalConfig)
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return envPrefix + env
}

// GetConfigPath resolves the config file location from HSAUTH_CONFIG_FILE,
// HSAUTH_CONFIG_DIR, then the user config directory.
func GetConfigPath() string {
	if configFile := os.Getenv(envPrefix + "CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv(envPrefix + "CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv(envPrefix + "CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "haystack-auth.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "haystack-auth.toml")
	}

	return "haystack-auth.toml"
}

// Defaults returns a fresh copy of the built-in configuration.
func Defaults() *Config {
	return defaults()
}
