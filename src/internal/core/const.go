// FILE: haystackauth/src/internal/core/const.go
package core

import "time"

// Haystack auth endpoint and header names
const (
	AboutResource = "about"

	HeaderAuthorization      = "Authorization"
	HeaderWWWAuthenticate    = "WWW-Authenticate"
	HeaderAuthenticationInfo = "Authentication-Info"
	HeaderLocation           = "Location"
	HeaderUserAgent          = "User-Agent"
)

// Auth scheme names as they appear on the wire
const (
	SchemeHello  = "hello"
	SchemeScram  = "scram"
	SchemeBearer = "bearer"
)

// SCRAM parameters
const (
	ClientNonceLen = 24
	GS2Header      = "n,,"
	MaxRedirects   = 1
)

const (
	DefaultRoundTripTimeout = 30 * time.Second
	DefaultRetryInterval    = 2 * time.Second
	DefaultMaxAttempts      = 1
)
