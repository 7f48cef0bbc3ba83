// FILE: haystackauth/src/internal/scram/message.go
package scram

import (
	"fmt"
	"strconv"
	"strings"
)

// ServerFirst is the decoded server-first-message.
type ServerFirst struct {
	Raw        string // exact bytes received, part of the auth message
	FullNonce  string // client_nonce + server_nonce
	Salt       []byte
	Iterations int
}

// ParseServerFirst decodes "r=...,s=...,i=..." as sent by the server.
func ParseServerFirst(msg string) (*ServerFirst, error) {
	attrs := parseAttributes(msg)

	sf := &ServerFirst{Raw: msg, FullNonce: attrs["r"]}
	if sf.FullNonce == "" {
		return nil, fmt.Errorf("server-first-message missing nonce")
	}

	saltB64, ok := attrs["s"]
	if !ok || saltB64 == "" {
		return nil, fmt.Errorf("server-first-message missing salt")
	}
	salt, err := DecodeData(saltB64)
	if err != nil {
		return nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	sf.Salt = salt

	iter, err := strconv.Atoi(attrs["i"])
	if err != nil || iter <= 0 {
		return nil, fmt.Errorf("invalid iteration count %q", attrs["i"])
	}
	sf.Iterations = iter

	return sf, nil
}

// parseAttributes splits a comma-separated key=value list. Entries without
// a key are skipped.
func parseAttributes(msg string) map[string]string {
	data := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		k, v, found := strings.Cut(part, "=")
		if !found || k == "" {
			continue
		}
		data[k] = v
	}
	return data
}

// encodeName escapes a username as an RFC 5802 saslname.
func encodeName(s string) string {
	return strings.NewReplacer("=", "=3D", ",", "=2C").Replace(s)
}
