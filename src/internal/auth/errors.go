// FILE: haystackauth/src/internal/auth/errors.go
package auth

import (
	"errors"
	"fmt"

	"haystackauth/src/internal/scram"
)

var (
	// ErrBadCredentials is the only detail reported for a rejected proof
	ErrBadCredentials       = errors.New("authentication failed: invalid username or password")
	ErrTooManyRedirects     = errors.New("too many redirects")
	ErrUnsupportedScheme    = errors.New("unsupported auth scheme")
	ErrUnsupportedHash      = scram.ErrUnsupportedHash
	ErrUnsupportedProtocol  = errors.New("unrecognized protocol for request")
	ErrServerSignature      = errors.New("server signature verification failed")
	ErrUnexpectedStatus     = errors.New("unexpected status")
	ErrLoginInProgress      = errors.New("login already in progress")
	ErrAlreadyAuthenticated = errors.New("client already authenticated")
	ErrClientClosed         = errors.New("client closed")
)

// Stage names the round trip an error belongs to.
type Stage string

const (
	StageHello       Stage = "hello"
	StageRedirect    Stage = "redirect"
	StageClientFirst Stage = "client-first"
	StageClientFinal Stage = "client-final"
)

// ProtocolError reports a server response the handshake cannot continue
// from.
type ProtocolError struct {
	Stage  Stage
	Status int // 0 when no response was involved
	Err    error
}

func (e *ProtocolError) Error() string {
	switch {
	case errors.Is(e.Err, ErrBadCredentials):
		return e.Err.Error()
	case errors.Is(e.Err, ErrUnexpectedStatus):
		return fmt.Sprintf("%s failed with status %d", e.Stage, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// CryptoError wraps a failure from nonce generation or data decoding.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// TransportError wraps connection, TLS, timeout and cancellation failures.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
