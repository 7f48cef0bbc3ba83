// FILE: haystackauth/src/internal/tls/generator.go
package tls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

const defaultKeyBits = 2048

// Certificate is a generated certificate with its RSA key.
type Certificate struct {
	Cert    *x509.Certificate
	Key     *rsa.PrivateKey
	CertPEM []byte
	KeyPEM  []byte
}

// GenerateCA creates a self-signed CA certificate.
func GenerateCA(cn string, validFor time.Duration) (*Certificate, error) {
	template, err := newTemplate(cn, validFor)
	if err != nil {
		return nil, err
	}
	template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	template.BasicConstraintsValid = true
	template.IsCA = true

	return create(template, nil)
}

// IssueServer creates a server certificate for hosts, which may be DNS
// names or IP addresses, signed by ca.
func (ca *Certificate) IssueServer(cn string, hosts []string, validFor time.Duration) (*Certificate, error) {
	template, err := newTemplate(cn, validFor)
	if err != nil {
		return nil, err
	}
	template.KeyUsage = x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	template.DNSNames, template.IPAddresses = splitHosts(hosts)

	return create(template, ca)
}

// IssueClient creates a client certificate signed by ca.
func (ca *Certificate) IssueClient(cn string, validFor time.Duration) (*Certificate, error) {
	template, err := newTemplate(cn, validFor)
	if err != nil {
		return nil, err
	}
	template.KeyUsage = x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}

	return create(template, ca)
}

// Pool returns a cert pool holding only this certificate.
func (c *Certificate) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(c.Cert)
	return pool
}

// KeyPair returns the certificate in crypto/tls form.
func (c *Certificate) KeyPair() (tls.Certificate, error) {
	return tls.X509KeyPair(c.CertPEM, c.KeyPEM)
}

// WriteFiles saves the certificate and key as PEM. The key file is
// written with mode 0600.
func (c *Certificate) WriteFiles(certFile, keyFile string) error {
	if err := os.WriteFile(certFile, c.CertPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if keyFile == "" {
		return nil
	}
	if err := os.WriteFile(keyFile, c.KeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

func newTemplate(cn string, validFor time.Duration) (*x509.Certificate, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	return &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"haystack-auth"},
		},
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(validFor),
	}, nil
}

// create signs template with parent, or self-signs when parent is nil.
func create(template *x509.Certificate, parent *Certificate) (*Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, defaultKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	signerCert, signerKey := template, priv
	if parent != nil {
		signerCert, signerKey = parent.Cert, parent.Key
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, signerCert, &priv.PublicKey, signerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &Certificate{
		Cert:    cert,
		Key:     priv,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}),
	}, nil
}

func splitHosts(hosts []string) ([]string, []net.IP) {
	var dnsNames []string
	var ipAddrs []net.IP
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ipAddrs = append(ipAddrs, ip)
		} else if h != "" {
			dnsNames = append(dnsNames, h)
		}
	}
	return dnsNames, ipAddrs
}
