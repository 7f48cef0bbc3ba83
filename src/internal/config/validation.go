// FILE: haystackauth/src/internal/config/validation.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// validateConfig is the single entry point for post-load checks.
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateTarget(&cfg.Target); err != nil {
		return fmt.Errorf("target: %w", err)
	}

	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := validateTLSConfig(cfg.TLS); err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	if err := validateLogConfig(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate re-runs the post-load checks, e.g. after flag overrides.
func (c *Config) Validate() error {
	return validateConfig(c)
}

// ValidateCredentials is run by commands that need an account, after CLI
// flags and prompts have been applied.
func (c *Config) ValidateCredentials() error {
	if err := lconfig.NonEmpty(c.Target.URI); err != nil {
		return fmt.Errorf("target uri is required")
	}
	if err := lconfig.NonEmpty(c.Target.Username); err != nil {
		return fmt.Errorf("username is required")
	}
	return nil
}

func validateTarget(t *TargetConfig) error {
	if t.URI == "" {
		return nil
	}

	u, err := url.Parse(t.URI)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", t.URI, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("uri scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("uri %q has no host", t.URI)
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if a.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", a.TimeoutMS)
	}
	if a.MaxAttempts < 1 || a.MaxAttempts > 10 {
		return fmt.Errorf("max_attempts must be between 1 and 10, got %d", a.MaxAttempts)
	}
	if a.RetryIntervalMS < 0 {
		return fmt.Errorf("retry_interval_ms cannot be negative")
	}
	if strings.ContainsAny(a.ProxyHeader, " \t:\r\n") {
		return fmt.Errorf("invalid proxy_header name %q", a.ProxyHeader)
	}
	return nil
}
