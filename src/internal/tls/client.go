// FILE: haystackauth/src/internal/tls/client.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"haystackauth/src/internal/config"

	"github.com/lixenwraith/log"
)

// ClientManager builds the TLS configuration used for https:// targets.
type ClientManager struct {
	config    *config.TLSConfig
	tlsConfig *tls.Config
	logger    *log.Logger
}

// NewClientManager validates cfg and loads the referenced certificates.
// A nil cfg yields a manager with library defaults.
func NewClientManager(cfg *config.TLSConfig, logger *log.Logger) (*ClientManager, error) {
	if cfg == nil {
		cfg = config.DefaultTLSConfig()
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	m := &ClientManager{
		config: cfg,
		logger: logger,
		tlsConfig: &tls.Config{
			MinVersion: parseTLSVersion(cfg.MinVersion, tls.VersionTLS12),
			MaxVersion: parseTLSVersion(cfg.MaxVersion, tls.VersionTLS13),
			ServerName: cfg.ServerName,

			// reject_unauthorized=false disables chain and host checks
			InsecureSkipVerify: !cfg.RejectUnauthorized,
		},
	}

	if m.tlsConfig.MinVersion > m.tlsConfig.MaxVersion {
		return nil, fmt.Errorf("min TLS version %s is above max %s",
			tlsVersionString(m.tlsConfig.MinVersion), tlsVersionString(m.tlsConfig.MaxVersion))
	}

	if cfg.CipherSuites != "" {
		suites, err := parseCipherSuites(cfg.CipherSuites)
		if err != nil {
			return nil, err
		}
		m.tlsConfig.CipherSuites = suites
	}

	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		clientCert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		m.tlsConfig.Certificates = []tls.Certificate{clientCert}
	} else if cfg.ClientCertFile != "" || cfg.ClientKeyFile != "" {
		return nil, fmt.Errorf("both client_cert_file and client_key_file must be provided for mTLS")
	}

	if cfg.ServerCAFile != "" {
		caCert, err := os.ReadFile(cfg.ServerCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read server CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse server CA certificate")
		}
		m.tlsConfig.RootCAs = caCertPool
	}

	if !cfg.RejectUnauthorized {
		logger.Warn("msg", "Server certificate verification disabled",
			"component", "tls")
	}
	logger.Debug("msg", "TLS client configured",
		"component", "tls",
		"min_version", tlsVersionString(m.tlsConfig.MinVersion),
		"max_version", tlsVersionString(m.tlsConfig.MaxVersion),
		"has_client_cert", cfg.ClientCertFile != "",
		"has_server_ca", cfg.ServerCAFile != "")
	return m, nil
}

// GetConfig returns a copy safe for the caller to modify.
func (m *ClientManager) GetConfig() *tls.Config {
	if m == nil {
		return nil
	}
	return m.tlsConfig.Clone()
}

// GetStats summarizes the effective settings for display.
func (m *ClientManager) GetStats() map[string]any {
	if m == nil {
		return map[string]any{"configured": false}
	}
	return map[string]any{
		"configured":          true,
		"min_version":         tlsVersionString(m.tlsConfig.MinVersion),
		"max_version":         tlsVersionString(m.tlsConfig.MaxVersion),
		"has_client_cert":     m.config.ClientCertFile != "",
		"has_server_ca":       m.config.ServerCAFile != "",
		"reject_unauthorized": m.config.RejectUnauthorized,
	}
}
