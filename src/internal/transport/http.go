// FILE: haystackauth/src/internal/transport/http.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"haystackauth/src/internal/config"
	"haystackauth/src/internal/core"
	ltls "haystackauth/src/internal/tls"
	"haystackauth/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	// Upper bound for one round trip; a nearer context deadline wins
	Timeout time.Duration

	// Used for https:// targets
	TLS *config.TLSConfig

	// Replaces the default TCP dialer when set
	Dial fasthttp.DialFunc
}

// HTTPTransport sends requests with fasthttp, which never follows
// redirects on Do.
type HTTPTransport struct {
	client     *fasthttp.Client
	tlsManager *ltls.ClientManager
	timeout    time.Duration
	logger     *log.Logger
}

// NewHTTPTransport creates a transport with its own connection pool.
func NewHTTPTransport(opts HTTPOptions, logger *log.Logger) (*HTTPTransport, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = core.DefaultRoundTripTimeout
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	tlsManager, err := ltls.NewClientManager(opts.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS client manager: %w", err)
	}

	t := &HTTPTransport{
		client: &fasthttp.Client{
			Name:                version.UserAgent(),
			MaxConnsPerHost:     4,
			MaxIdleConnDuration: 10 * time.Second,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			TLSConfig:           tlsManager.GetConfig(),
			Dial:                opts.Dial,
		},
		tlsManager: tlsManager,
		timeout:    opts.Timeout,
		logger:     logger,
	}
	return t, nil
}

type sendResult struct {
	resp *Response
	err  error
}

// Send implements Transport. The fasthttp call runs in its own goroutine,
// which owns the pooled request and response, so returning early on
// cancellation never touches released objects.
func (t *HTTPTransport) Send(ctx context.Context, method, url string, header map[string]string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	callerDeadline := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
		callerDeadline = true
	}

	done := make(chan sendResult, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(method)
		req.Header.Set(core.HeaderUserAgent, version.UserAgent())
		for k, v := range header {
			req.Header.Set(k, v)
		}

		if err := t.client.DoDeadline(req, resp, deadline); err != nil {
			done <- sendResult{err: err}
			return
		}

		out := &Response{
			StatusCode: resp.StatusCode(),
			Header:     make(http.Header),
		}
		resp.Header.VisitAll(func(key, value []byte) {
			out.Header.Add(string(key), string(value))
		})
		done <- sendResult{resp: out}
	}()

	select {
	case <-ctx.Done():
		t.logger.Debug("msg", "Request abandoned",
			"component", "transport",
			"method", method,
			"url", redactURL(url),
			"error", ctx.Err())
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			t.logger.Debug("msg", "Request failed",
				"component", "transport",
				"method", method,
				"url", redactURL(url),
				"error", r.err)
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", err, r.err)
			}
			// The context timer may fire just after fasthttp gives up on the same deadline
			if callerDeadline && (errors.Is(r.err, fasthttp.ErrTimeout) || !time.Now().Before(deadline)) {
				return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, r.err)
			}
			return nil, r.err
		}
		t.logger.Debug("msg", "Response received",
			"component", "transport",
			"method", method,
			"url", redactURL(url),
			"status", r.resp.StatusCode)
		return r.resp, nil
	}
}

// CloseIdleConnections drops pooled connections.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// TLSStats exposes the effective TLS settings.
func (t *HTTPTransport) TLSStats() map[string]any {
	return t.tlsManager.GetStats()
}

// redactURL drops any userinfo before the host.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		if slash := strings.IndexByte(rest, '/'); slash < 0 || at < slash {
			rest = rest[at+1:]
		}
	}
	return scheme + "://" + rest
}
