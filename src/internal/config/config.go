// FILE: haystackauth/src/internal/config/config.go
package config

// Config is the complete client configuration.
type Config struct {
	Target  TargetConfig `toml:"target"`
	Auth    AuthConfig   `toml:"auth"`
	TLS     *TLSConfig   `toml:"tls"`
	Logging *LogConfig   `toml:"logging"`
}

// TargetConfig identifies the server and the account to log in with.
type TargetConfig struct {
	// Base URI of the Haystack API, e.g. "http://host:8080/api/demo"
	URI      string `toml:"uri"`
	Username string `toml:"username"`

	// Optional; the CLI prompts when empty
	Password string `toml:"password"`
}

// AuthConfig tunes the handshake.
type AuthConfig struct {
	// Per round trip
	TimeoutMS int64 `toml:"timeout_ms"`

	// Additional header that receives the bearer value, e.g. "Proxy-Authorization"
	ProxyHeader string `toml:"proxy_header"`

	RequireServerSignature bool `toml:"require_server_signature"`
	NormalizePassword      bool `toml:"normalize_password"`

	// Caller-side retries, performed by the CLI only
	MaxAttempts     int64 `toml:"max_attempts"`
	RetryIntervalMS int64 `toml:"retry_interval_ms"`
}
