// FILE: haystackauth/src/internal/transport/transport.go
package transport

import (
	"context"
	"net/http"
)

// Response is the subset of an HTTP response the handshake inspects.
// Bodies are never read.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Transport performs a single HTTP exchange. Implementations must not
// follow redirects and must abort when ctx is done.
type Transport interface {
	Send(ctx context.Context, method, url string, header map[string]string) (*Response, error)
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, method, url string, header map[string]string) (*Response, error)

func (f Func) Send(ctx context.Context, method, url string, header map[string]string) (*Response, error) {
	return f(ctx, method, url, header)
}
