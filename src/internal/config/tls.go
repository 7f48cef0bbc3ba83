// FILE: haystackauth/src/internal/config/tls.go
package config

import (
	"fmt"
	"os"
)

// TLSConfig applies to https:// targets only.
type TLSConfig struct {
	// false skips certificate verification
	RejectUnauthorized bool `toml:"reject_unauthorized"`

	// CA bundle to trust for the server certificate
	ServerCAFile string `toml:"server_ca_file"`

	// Client certificate for mTLS
	ClientCertFile string `toml:"client_cert_file"`
	ClientKeyFile  string `toml:"client_key_file"`

	// Overrides SNI and the verified host name
	ServerName string `toml:"server_name"`

	// TLS version constraints
	MinVersion string `toml:"min_version"` // "TLS1.2", "TLS1.3"
	MaxVersion string `toml:"max_version"`

	// Cipher suites (comma-separated list)
	CipherSuites string `toml:"cipher_suites"`
}

func DefaultTLSConfig() *TLSConfig {
	return &TLSConfig{
		RejectUnauthorized: true,
		MinVersion:         "TLS1.2",
		MaxVersion:         "TLS1.3",
	}
}

func validateTLSConfig(cfg *TLSConfig) error {
	if cfg == nil {
		return nil
	}

	if (cfg.ClientCertFile == "") != (cfg.ClientKeyFile == "") {
		return fmt.Errorf("both client_cert_file and client_key_file must be provided for mTLS")
	}

	for name, path := range map[string]string{
		"server_ca_file":   cfg.ServerCAFile,
		"client_cert_file": cfg.ClientCertFile,
		"client_key_file":  cfg.ClientKeyFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s is not accessible: %w", name, err)
		}
	}

	validVersions := map[string]bool{"TLS1.0": true, "TLS1.1": true, "TLS1.2": true, "TLS1.3": true, "": true}
	if !validVersions[cfg.MinVersion] {
		return fmt.Errorf("invalid min TLS version: %s", cfg.MinVersion)
	}
	if !validVersions[cfg.MaxVersion] {
		return fmt.Errorf("invalid max TLS version: %s", cfg.MaxVersion)
	}

	return nil
}
