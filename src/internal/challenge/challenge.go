// FILE: haystackauth/src/internal/challenge/challenge.go
package challenge

import (
	"fmt"
	"sort"
	"strings"
)

// Params holds auth-param values keyed by lower-cased name.
// When a name repeats within one challenge the last occurrence wins.
type Params map[string]string

// Get returns the value for name, matched case-insensitively.
func (p Params) Get(name string) (string, bool) {
	v, ok := p[strings.ToLower(name)]
	return v, ok
}

// Value returns the value for name or "" when absent.
func (p Params) Value(name string) string {
	v, _ := p.Get(name)
	return v
}

// Challenge is one auth-scheme with its parameters from a
// WWW-Authenticate or Authentication-Info header.
type Challenge struct {
	Scheme string
	Params Params
}

// Param is shorthand for c.Params.Value(name).
func (c *Challenge) Param(name string) string {
	return c.Params.Value(name)
}

func (c *Challenge) String() string {
	if len(c.Params) == 0 {
		return c.Scheme
	}

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, c.Params[k]))
	}
	return c.Scheme + " " + strings.Join(parts, ", ")
}

// ParseError reports a malformed header value.
type ParseError struct {
	Header string
	Pos    int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed auth header at pos %d: %s", e.Pos, e.Msg)
}
