// FILE: haystackauth/src/internal/tls/client_test.go
package tls

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"haystackauth/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientManager(t *testing.T) {
	logger := log.NewLogger()

	t.Run("Defaults", func(t *testing.T) {
		m, err := NewClientManager(nil, logger)
		require.NoError(t, err)

		c := m.GetConfig()
		assert.False(t, c.InsecureSkipVerify)
		assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
		assert.Equal(t, uint16(tls.VersionTLS13), c.MaxVersion)
	})

	t.Run("RejectUnauthorizedFalse", func(t *testing.T) {
		cfg := config.DefaultTLSConfig()
		cfg.RejectUnauthorized = false
		cfg.ServerName = "haystack.local"

		m, err := NewClientManager(cfg, logger)
		require.NoError(t, err)

		c := m.GetConfig()
		assert.True(t, c.InsecureSkipVerify)
		assert.Equal(t, "haystack.local", c.ServerName)
		assert.Equal(t, false, m.GetStats()["reject_unauthorized"])
	})

	t.Run("CipherSuites", func(t *testing.T) {
		cfg := config.DefaultTLSConfig()
		cfg.CipherSuites = "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384"

		m, err := NewClientManager(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		}, m.GetConfig().CipherSuites)
	})

	t.Run("UnknownCipherSuite", func(t *testing.T) {
		cfg := config.DefaultTLSConfig()
		cfg.CipherSuites = "TLS_NOT_A_SUITE"
		_, err := NewClientManager(cfg, logger)
		assert.ErrorContains(t, err, "TLS_NOT_A_SUITE")
	})

	t.Run("InvertedVersions", func(t *testing.T) {
		cfg := config.DefaultTLSConfig()
		cfg.MinVersion = "TLS1.3"
		cfg.MaxVersion = "TLS1.2"
		_, err := NewClientManager(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("CertWithoutKey", func(t *testing.T) {
		cfg := config.DefaultTLSConfig()
		cfg.ClientCertFile = "client.pem"
		_, err := NewClientManager(cfg, logger)
		assert.ErrorContains(t, err, "mTLS")
	})

	t.Run("InvalidCAFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0600))

		cfg := config.DefaultTLSConfig()
		cfg.ServerCAFile = path
		_, err := NewClientManager(cfg, logger)
		assert.ErrorContains(t, err, "parse server CA")
	})
}

func TestGetConfig_ReturnsCopy(t *testing.T) {
	m, err := NewClientManager(nil, log.NewLogger())
	require.NoError(t, err)

	c := m.GetConfig()
	c.InsecureSkipVerify = true
	assert.False(t, m.GetConfig().InsecureSkipVerify)

	var nilManager *ClientManager
	assert.Nil(t, nilManager.GetConfig())
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("tls1.3", 0))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("TLS12", 0))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("", tls.VersionTLS12))
	assert.Equal(t, "TLS1.3", tlsVersionString(tls.VersionTLS13))
	assert.Equal(t, "0x0300", tlsVersionString(0x0300))
}
