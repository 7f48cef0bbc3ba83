// FILE: haystackauth/src/internal/auth/client.go
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"haystackauth/src/internal/challenge"
	"haystackauth/src/internal/core"
	"haystackauth/src/internal/scram"
	"haystackauth/src/internal/token"
	"haystackauth/src/internal/transport"

	"github.com/lixenwraith/log"
)

// Client logs in to one Haystack server with one account.
//
// The password is wiped after a successful login and by Close. After a
// failed login it is kept so the caller can retry on the same Client.
type Client struct {
	username  string
	transport transport.Transport
	logger    *log.Logger

	// Options
	timeout                time.Duration
	proxyHeader            string
	requireServerSignature bool
	normalizePassword      bool
	nonce                  func() (string, error)

	mu       sync.Mutex
	target   *Target
	password []byte
	headers  map[string]string
	closed   bool

	state    atomic.Int32
	inFlight atomic.Bool
}

// NewClient creates a client for the server at uri. The password slice is
// copied.
func NewClient(uri, username string, password []byte, tr transport.Transport, logger *log.Logger, opts ...Option) (*Client, error) {
	if tr == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	target, err := ParseTarget(uri)
	if err != nil {
		return nil, err
	}

	c := &Client{
		username:  username,
		transport: tr,
		logger:    logger,
		timeout:   core.DefaultRoundTripTimeout,
		nonce: func() (string, error) {
			return scram.Nonce(core.ClientNonceLen)
		},
		target:   target,
		password: make([]byte, len(password)),
		headers:  make(map[string]string),
	}
	copy(c.password, password)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login runs the handshake and invokes exactly one of the continuations
// before returning.
func (c *Client) Login(ctx context.Context, onSuccess func(map[string]string), onFailure func(error)) {
	headers, err := c.Authenticate(ctx)
	if err != nil {
		if onFailure != nil {
			onFailure(err)
		}
		return
	}
	if onSuccess != nil {
		onSuccess(headers)
	}
}

// Authenticate runs the handshake and returns the extra headers, including
// the bearer Authorization entry, on success.
func (c *Client) Authenticate(ctx context.Context) (map[string]string, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrLoginInProgress
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClientClosed
	}
	if c.State() == StateAuthenticated {
		return nil, ErrAlreadyAuthenticated
	}

	c.setState(StateInit)
	headers, err := c.authenticate(ctx)
	if err != nil {
		c.setState(StateFailed)
		c.logger.Debug("msg", "Login failed",
			"component", "auth_client",
			"user", c.username,
			"error", err)
		return nil, err
	}
	return headers, nil
}

func (c *Client) authenticate(ctx context.Context) (map[string]string, error) {
	hello := map[string]string{
		core.HeaderAuthorization: core.SchemeHello + " username=" + base64.RawURLEncoding.EncodeToString([]byte(c.username)),
	}

	c.setState(StateHelloSent)
	resp, err := c.send(ctx, StageHello, hello)
	if err != nil {
		return nil, err
	}

	for hops := 0; resp.StatusCode == http.StatusSeeOther; hops++ {
		if hops == core.MaxRedirects {
			return nil, &ProtocolError{Stage: StageRedirect, Status: resp.StatusCode, Err: ErrTooManyRedirects}
		}
		if err := c.redirect(resp); err != nil {
			return nil, err
		}
		c.setState(StateHelloSent)
		if resp, err = c.send(ctx, StageHello, hello); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return nil, &ProtocolError{Stage: StageHello, Status: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	helloChallenge, err := challenge.ParseFirst(resp.Header.Get(core.HeaderWWWAuthenticate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageHello, err)
	}
	c.setState(StateChallenged)

	if helloChallenge.Scheme != core.SchemeScram {
		return nil, &ProtocolError{
			Stage:  StageHello,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: %s", ErrUnsupportedScheme, helloChallenge.Scheme),
		}
	}

	return c.exchange(ctx, helloChallenge)
}

// exchange performs the two SCRAM round trips after a scram challenge.
func (c *Client) exchange(ctx context.Context, hello *challenge.Challenge) (map[string]string, error) {
	hashName := hello.Param("hash")
	alg, err := scram.LookupHash(hashName)
	if err != nil {
		if hashName == "" {
			err = fmt.Errorf("%w: missing hash parameter", err)
		}
		return nil, &ProtocolError{Stage: StageHello, Status: http.StatusUnauthorized, Err: err}
	}

	clientNonce, err := c.nonce()
	if err != nil {
		return nil, &CryptoError{Op: "nonce", Err: err}
	}

	ex := scram.NewExchange(alg, c.username, clientNonce)
	defer ex.Clear()

	first := scramHeader(hello.Scheme, scram.EncodeData(ex.ClientFirst()), hello.Param("handshakeToken"))
	resp, err := c.send(ctx, StageClientFirst, first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, &ProtocolError{Stage: StageClientFirst, Status: resp.StatusCode, Err: ErrBadCredentials}
	}

	serverChallenge, err := challenge.ParseFirst(resp.Header.Get(core.HeaderWWWAuthenticate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageClientFirst, err)
	}
	data := serverChallenge.Param("data")
	if data == "" {
		return nil, &ProtocolError{
			Stage:  StageClientFirst,
			Status: resp.StatusCode,
			Err:    errors.New("challenge carries no server-first data"),
		}
	}
	serverFirst, err := scram.DecodeData(data)
	if err != nil {
		return nil, &CryptoError{Op: "decode server-first", Err: err}
	}

	password, release := c.keyMaterial()
	final, err := ex.ClientFinal(string(serverFirst), password)
	release()
	if err != nil {
		return nil, &ProtocolError{
			Stage:  StageClientFirst,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("malformed server-first: %w", err),
		}
	}

	// The server may rotate the handshake token between round trips
	handshakeToken := serverChallenge.Param("handshakeToken")
	if handshakeToken == "" {
		handshakeToken = hello.Param("handshakeToken")
	}

	c.setState(StateProofSent)
	resp, err = c.send(ctx, StageClientFinal, scramHeader(hello.Scheme, scram.EncodeData(final), handshakeToken))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{Stage: StageClientFinal, Status: resp.StatusCode, Err: ErrBadCredentials}
	}

	authInfo := resp.Header.Get(core.HeaderAuthenticationInfo)
	if err := c.verifyServerSignature(ex, authInfo); err != nil {
		return nil, err
	}

	bearer, err := token.Extract(authInfo)
	if err != nil {
		return nil, &ProtocolError{Stage: StageClientFinal, Status: resp.StatusCode, Err: err}
	}

	return c.complete(bearer), nil
}

// verifyServerSignature checks the "data" parameter of Authentication-Info
// when present. Its absence is an error only when required.
func (c *Client) verifyServerSignature(ex *scram.Exchange, authInfo string) error {
	var data string
	if params, err := authInfoParams(authInfo); err == nil {
		data = params.Value("data")
	} else if c.requireServerSignature {
		return fmt.Errorf("%s: %w", StageClientFinal, err)
	}

	if data == "" {
		if c.requireServerSignature {
			return &ProtocolError{
				Stage:  StageClientFinal,
				Status: http.StatusOK,
				Err:    fmt.Errorf("%w: no signature in response", ErrServerSignature),
			}
		}
		c.logger.Warn("msg", "Server did not send a signature, server identity not verified",
			"component", "auth_client",
			"host", c.Target().Host)
		return nil
	}

	serverFinal, err := scram.DecodeData(data)
	if err != nil {
		return &CryptoError{Op: "decode server-final", Err: err}
	}
	if err := ex.VerifyServerFinal(string(serverFinal)); err != nil {
		return &ProtocolError{
			Stage:  StageClientFinal,
			Status: http.StatusOK,
			Err:    fmt.Errorf("%w: %v", ErrServerSignature, err),
		}
	}
	return nil
}

// authInfoParams parses Authentication-Info, which either is a plain
// auth-param list or starts with a bare bearer token segment.
func authInfoParams(authInfo string) (challenge.Params, error) {
	params, err := challenge.ParseParams(authInfo)
	if err == nil {
		return params, nil
	}
	_, rest, ok := strings.Cut(authInfo, ",")
	if !ok {
		return nil, err
	}
	return challenge.ParseParams(rest)
}

// complete records the bearer and returns a copy of the extra headers.
func (c *Client) complete(bearer string) map[string]string {
	c.mu.Lock()
	zero(c.password)
	c.password = nil
	c.headers[core.HeaderAuthorization] = token.HeaderValue(bearer)
	if c.proxyHeader != "" {
		c.headers[c.proxyHeader] = token.HeaderValue(bearer)
	}
	out := maps.Clone(c.headers)
	host := c.target.Host
	c.mu.Unlock()

	c.setState(StateAuthenticated)

	fields := []any{
		"msg", "Login succeeded",
		"component", "auth_client",
		"user", c.username,
		"host", host,
	}
	if info, err := token.Inspect(bearer); err == nil && !info.ExpiresAt.IsZero() {
		fields = append(fields, "token_expires", info.ExpiresAt.Format(time.RFC3339))
	}
	c.logger.Info(fields...)

	return out
}

// redirect moves the target to the 303 Location.
func (c *Client) redirect(resp *transport.Response) error {
	location := resp.Header.Get(core.HeaderLocation)

	c.mu.Lock()
	next, err := c.target.Redirect(location, core.AboutResource)
	if err == nil {
		c.target = next
	}
	c.mu.Unlock()

	if err != nil {
		return &ProtocolError{Stage: StageRedirect, Status: resp.StatusCode, Err: err}
	}

	c.setState(StateRedirected)
	c.logger.Debug("msg", "Following redirect",
		"component", "auth_client",
		"location", next.URL(core.AboutResource))
	return nil
}

// send issues one GET to the about resource with header merged under the
// extra headers.
func (c *Client) send(ctx context.Context, stage Stage, header map[string]string) (*transport.Response, error) {
	c.mu.Lock()
	target := *c.target
	merged := c.prepare(header)
	c.mu.Unlock()

	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, &ProtocolError{Stage: stage, Err: fmt.Errorf("%w: %q", ErrUnsupportedProtocol, target.Scheme)}
	}

	url := target.URL(core.AboutResource)
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	rtCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.transport.Send(rtCtx, http.MethodGet, url, merged)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	c.logger.Debug("msg", "Round trip complete",
		"component", "auth_client",
		"stage", string(stage),
		"url", url,
		"status", resp.StatusCode)
	return resp, nil
}

// prepare overlays the extra headers on h. Callers hold c.mu.
func (c *Client) prepare(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+len(c.headers))
	maps.Copy(out, h)
	maps.Copy(out, c.headers)
	return out
}

// keyMaterial returns the password to derive keys from and a func that
// wipes any temporary copy.
func (c *Client) keyMaterial() ([]byte, func()) {
	c.mu.Lock()
	password := append([]byte(nil), c.password...)
	c.mu.Unlock()

	if c.normalizePassword {
		normalized := scram.NormalizePassword(password)
		zero(password)
		password = normalized
	}
	return password, func() { zero(password) }
}

func scramHeader(scheme, data, handshakeToken string) map[string]string {
	value := scheme + " data=" + data
	if handshakeToken != "" {
		value += ", handshakeToken=" + handshakeToken
	}
	return map[string]string{core.HeaderAuthorization: value}
}

// State returns the current login state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Target returns a copy of the current target, which changes after a
// redirect.
func (c *Client) Target() Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.target
}

// Headers returns a copy of the extra headers.
func (c *Client) Headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.headers)
}

// HasPassword reports whether the client still holds a password.
func (c *Client) HasPassword() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.password != nil
}

// Close wipes the password. Later logins fail with ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	zero(c.password)
	c.password = nil
	c.closed = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
