// FILE: haystackauth/src/internal/token/token.go
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"haystackauth/src/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoBearer = errors.New("authentication-info carries no token")
	ErrNotJWT   = errors.New("bearer token is not a JWT")
)

const authTokenParam = "authtoken="

// Extract returns the bearer credential from an Authentication-Info value:
// its first comma-separated segment, trimmed.
func Extract(authInfo string) (string, error) {
	first, _, _ := strings.Cut(authInfo, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return "", ErrNoBearer
	}
	return first, nil
}

// HeaderValue builds the Authorization value for later requests.
func HeaderValue(bearer string) string {
	return core.SchemeBearer + " " + bearer
}

// Value strips a leading "authToken=" from bearer.
func Value(bearer string) string {
	if len(bearer) >= len(authTokenParam) && strings.EqualFold(bearer[:len(authTokenParam)], authTokenParam) {
		return bearer[len(authTokenParam):]
	}
	return bearer
}

// Info holds the registered claims of a JWT bearer.
type Info struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token has an expiry at or before now.
func (i *Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect reads the claims of a JWT bearer without verifying its
// signature. Only the issuing server can verify it; the client uses the
// claims for display and expiry hints.
func Inspect(bearer string) (*Info, error) {
	raw := Value(bearer)
	if strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := &Info{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		info.Issuer = iss
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
