// FILE: haystackauth/src/internal/auth/target.go
package auth

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Target is the server location requests are sent to. Requests go to
// <Path>/<resource>.
type Target struct {
	Scheme string
	Host   string
	Port   string
	Path   string
}

// ParseTarget parses a base URI such as "https://host:8443/api/demo".
// The scheme is checked when a request is sent, not here.
func ParseTarget(uri string) (*Target, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid target uri: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid target uri %q: missing host", uri)
	}
	return &Target{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Port:   u.Port(),
		Path:   strings.TrimRight(u.EscapedPath(), "/"),
	}, nil
}

// URL returns the absolute URL of resource under the target path.
func (t *Target) URL(resource string) string {
	host := t.Host
	if t.Port != "" {
		host = net.JoinHostPort(t.Host, t.Port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return t.Scheme + "://" + host + t.Path + "/" + resource
}

// Redirect derives the next target from a Location header. Relative
// locations resolve against the resource URL, and the last path segment
// (the resource itself) is dropped.
func (t *Target) Redirect(location, resource string) (*Target, error) {
	if location == "" {
		return nil, fmt.Errorf("redirect without location")
	}

	base, err := url.Parse(t.URL(resource))
	if err != nil {
		return nil, fmt.Errorf("invalid current url: %w", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect location %q: %w", location, err)
	}
	u := base.ResolveReference(ref)

	path := u.EscapedPath()
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[:idx]
	}

	return &Target{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Port:   u.Port(),
		Path:   path,
	}, nil
}

func (t *Target) String() string {
	return t.URL("")
}
