// FILE: haystackauth/src/internal/auth/options.go
package auth

import (
	"net/textproto"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHeader seeds an extra header sent with every request. Extra headers
// take precedence over the handshake's own headers.
func WithHeader(name, value string) Option {
	return func(c *Client) {
		c.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
	}
}

// WithTimeout bounds each round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProxyHeader also stores the bearer under name, for deployments
// where a proxy consumes e.g. Proxy-Authorization.
func WithProxyHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.proxyHeader = textproto.CanonicalMIMEHeaderKey(name)
		}
	}
}

// WithRequireServerSignature fails logins whose final response carries no
// server signature.
func WithRequireServerSignature(require bool) Option {
	return func(c *Client) {
		c.requireServerSignature = require
	}
}

// WithNormalizePassword applies SASLprep before key derivation.
func WithNormalizePassword(normalize bool) Option {
	return func(c *Client) {
		c.normalizePassword = normalize
	}
}

// WithNonceSource replaces the random client nonce generator.
func WithNonceSource(fn func() (string, error)) Option {
	return func(c *Client) {
		if fn != nil {
			c.nonce = fn
		}
	}
}
