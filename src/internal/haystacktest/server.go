// FILE: haystackauth/src/internal/haystacktest/server.go
package haystacktest

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"haystackauth/src/internal/challenge"
	"haystackauth/src/internal/config"
	"haystackauth/src/internal/core"
	ltls "haystackauth/src/internal/tls"
	"haystackauth/src/internal/transport"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"github.com/xdg-go/scram"
)

const (
	// Host is the authority clients should use; all dials go to the
	// in-memory listener regardless.
	Host     = "haystack.test"
	BasePath = "/api/demo"
)

// Options shape the server's behaviour.
type Options struct {
	// username -> password
	Users map[string]string

	// "SHA-256" (default) or "SHA-1"
	Hash       string
	Iterations int

	// Number of 303 responses to send for hello requests before answering
	Redirects int

	// Replaces "scram" in the hello challenge, e.g. "hmac"
	Scheme string

	// Status for hello requests instead of 401
	HelloStatus int

	// Raw WWW-Authenticate value for hello requests
	HelloChallenge string

	// Send the same handshake token on every challenge instead of rotating it
	StaticToken bool

	OmitServerSignature   bool
	TamperServerSignature bool

	// Delay before answering any request
	Latency time.Duration

	SigningKey []byte
	TokenTTL   time.Duration

	// Serve HTTPS with a certificate for Host from a generated CA
	TLS bool

	// Require a client certificate from the same CA; implies TLS
	RequireClientCert bool
}

// Request records what the server saw.
type Request struct {
	Path          string
	Authorization string
	UserAgent     string
	Header        map[string]string
}

// Server is an in-process Haystack auth endpoint.
type Server struct {
	opts        Options
	ln          *fasthttputil.InmemoryListener
	srv         *fasthttp.Server
	scramServer *scram.Server
	logger      *log.Logger
	ca          *ltls.Certificate

	mu            sync.Mutex
	redirects     int
	conversations map[string]*scram.ServerConversation
	requests      []Request

	done chan struct{}
}

// Start launches a server on an in-memory listener.
func Start(opts Options, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.NewLogger()
	}
	if opts.Hash == "" {
		opts.Hash = "SHA-256"
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 4096
	}
	if opts.SigningKey == nil {
		opts.SigningKey = []byte("haystacktest-signing-key-0123456789")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}

	hashGen, err := hashGenerator(opts.Hash)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:          opts,
		ln:            fasthttputil.NewInmemoryListener(),
		logger:        logger,
		conversations: make(map[string]*scram.ServerConversation),
		done:          make(chan struct{}),
	}

	creds, err := s.storedCredentials(hashGen)
	if err != nil {
		return nil, err
	}
	s.scramServer, err = hashGen.NewServer(func(user string) (scram.StoredCredentials, error) {
		c, ok := creds[user]
		if !ok {
			return scram.StoredCredentials{}, fmt.Errorf("unknown user %q", user)
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scram server: %w", err)
	}

	s.srv = &fasthttp.Server{
		Name:    "haystacktest",
		Handler: s.handle,
		Logger:  compat.NewFastHTTPAdapter(logger),
	}

	var ln net.Listener = s.ln
	if opts.TLS || opts.RequireClientCert {
		s.opts.TLS = true
		tlsConfig, err := s.serverTLS()
		if err != nil {
			return nil, err
		}
		ln = tls.NewListener(s.ln, tlsConfig)
	}

	go func() {
		defer close(s.done)
		_ = s.srv.Serve(ln)
	}()

	return s, nil
}

func hashGenerator(name string) (scram.HashGeneratorFcn, error) {
	switch strings.ToUpper(name) {
	case "SHA-1":
		return scram.SHA1, nil
	case "SHA-256":
		return scram.SHA256, nil
	default:
		return nil, fmt.Errorf("unsupported hash %q", name)
	}
}

func (s *Server) storedCredentials(hashGen scram.HashGeneratorFcn) (map[string]scram.StoredCredentials, error) {
	out := make(map[string]scram.StoredCredentials, len(s.opts.Users))
	for user, pass := range s.opts.Users {
		client, err := hashGen.NewClient(user, pass, "")
		if err != nil {
			return nil, fmt.Errorf("failed to derive credentials for %q: %w", user, err)
		}
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		out[user] = client.GetStoredCredentials(scram.KeyFactors{
			Salt:  string(salt),
			Iters: s.opts.Iterations,
		})
	}
	return out, nil
}

// serverTLS issues the server certificate from a fresh CA.
func (s *Server) serverTLS() (*tls.Config, error) {
	ca, err := ltls.GenerateCA("haystacktest CA", time.Hour)
	if err != nil {
		return nil, err
	}
	serverCert, err := ca.IssueServer(Host, []string{Host, "127.0.0.1"}, time.Hour)
	if err != nil {
		return nil, err
	}
	pair, err := serverCert.KeyPair()
	if err != nil {
		return nil, err
	}
	s.ca = ca

	cfg := &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}
	if s.opts.RequireClientCert {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = ca.Pool()
	}
	return cfg, nil
}

// URL is the base URI to hand to a client.
func (s *Server) URL() string {
	if s.opts.TLS {
		return "https://" + Host + BasePath
	}
	return "http://" + Host + BasePath
}

// ClientTLS writes the CA certificate, and a client certificate when one is
// required, to dir and returns a client config that trusts this server.
func (s *Server) ClientTLS(dir string) (*config.TLSConfig, error) {
	if s.ca == nil {
		return nil, fmt.Errorf("server is not serving TLS")
	}

	cfg := config.DefaultTLSConfig()
	cfg.ServerCAFile = filepath.Join(dir, "ca.pem")
	if err := s.ca.WriteFiles(cfg.ServerCAFile, ""); err != nil {
		return nil, err
	}

	if s.opts.RequireClientCert {
		clientCert, err := s.ca.IssueClient("haystacktest client", time.Hour)
		if err != nil {
			return nil, err
		}
		cfg.ClientCertFile = filepath.Join(dir, "client.pem")
		cfg.ClientKeyFile = filepath.Join(dir, "client-key.pem")
		if err := clientCert.WriteFiles(cfg.ClientCertFile, cfg.ClientKeyFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Dial connects to the in-memory listener; addr is ignored.
func (s *Server) Dial(addr string) (net.Conn, error) {
	return s.ln.Dial()
}

// Transport returns an HTTP transport wired to this server.
func (s *Server) Transport(timeout time.Duration, logger *log.Logger) (*transport.HTTPTransport, error) {
	return s.TransportTLS(timeout, nil, logger)
}

// TransportTLS is Transport with an explicit client TLS config.
func (s *Server) TransportTLS(timeout time.Duration, tlsCfg *config.TLSConfig, logger *log.Logger) (*transport.HTTPTransport, error) {
	return transport.NewHTTPTransport(transport.HTTPOptions{
		Timeout: timeout,
		TLS:     tlsCfg,
		Dial:    s.Dial,
	}, logger)
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// VerifyBearer checks a token issued by this server.
func (s *Server) VerifyBearer(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.opts.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Close stops the server.
func (s *Server) Close() error {
	err := s.srv.Shutdown()
	_ = s.ln.Close()
	<-s.done
	return err
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	s.record(ctx)

	if s.opts.Latency > 0 {
		time.Sleep(s.opts.Latency)
	}

	if !strings.HasSuffix(string(ctx.Path()), "/"+core.AboutResource) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	authz, err := challenge.ParseFirst(string(ctx.Request.Header.Peek(core.HeaderAuthorization)))
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	switch authz.Scheme {
	case core.SchemeHello:
		s.hello(ctx, authz)
	case core.SchemeScram:
		s.scramStep(ctx, authz)
	case core.SchemeBearer:
		s.bearer(ctx, authz)
	default:
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
	}
}

func (s *Server) record(ctx *fasthttp.RequestCtx) {
	r := Request{
		Path:          string(ctx.Path()),
		Authorization: string(ctx.Request.Header.Peek(core.HeaderAuthorization)),
		UserAgent:     string(ctx.Request.Header.UserAgent()),
		Header:        make(map[string]string),
	}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		r.Header[string(k)] = string(v)
	})

	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
}

func (s *Server) hello(ctx *fasthttp.RequestCtx, authz *challenge.Challenge) {
	s.mu.Lock()
	redirect := s.redirects < s.opts.Redirects
	if redirect {
		s.redirects++
	}
	n := s.redirects
	s.mu.Unlock()

	if redirect {
		// Relative location, resolved by the client against the request URL
		ctx.Response.Header.Set(core.HeaderLocation, fmt.Sprintf("/api/moved%d/%s", n, core.AboutResource))
		ctx.SetStatusCode(fasthttp.StatusSeeOther)
		return
	}

	if s.opts.HelloStatus != 0 {
		ctx.SetStatusCode(s.opts.HelloStatus)
		return
	}

	if s.opts.HelloChallenge != "" {
		ctx.Response.Header.Set(core.HeaderWWWAuthenticate, s.opts.HelloChallenge)
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}

	username, err := base64.RawURLEncoding.DecodeString(authz.Param("username"))
	if err != nil || len(username) == 0 {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	scheme := core.SchemeScram
	if s.opts.Scheme != "" {
		scheme = s.opts.Scheme
	}
	ctx.Response.Header.Set(core.HeaderWWWAuthenticate, fmt.Sprintf("%s handshakeToken=%s, hash=%s",
		scheme, base64.RawURLEncoding.EncodeToString(username), s.opts.Hash))
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
}

func (s *Server) scramStep(ctx *fasthttp.RequestCtx, authz *challenge.Challenge) {
	msg, err := base64.RawURLEncoding.DecodeString(authz.Param("data"))
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	tok := authz.Param("handshakeToken")
	s.mu.Lock()
	conv, ok := s.conversations[tok]
	if ok {
		delete(s.conversations, tok)
	}
	s.mu.Unlock()

	if !ok {
		s.serverFirst(ctx, tok, string(msg))
		return
	}
	s.serverFinal(ctx, conv, string(msg))
}

func (s *Server) serverFirst(ctx *fasthttp.RequestCtx, tok, clientFirst string) {
	conv := s.scramServer.NewConversation()
	serverFirst, err := conv.Step(clientFirst)
	if err != nil {
		s.logger.Debug("msg", "Rejected client-first",
			"component", "haystacktest",
			"error", err)
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		return
	}

	next := tok
	if !s.opts.StaticToken {
		next = randomToken()
	}
	s.mu.Lock()
	s.conversations[next] = conv
	s.mu.Unlock()

	ctx.Response.Header.Set(core.HeaderWWWAuthenticate, fmt.Sprintf("scram handshakeToken=%s, hash=%s, data=%s",
		next, s.opts.Hash, base64.RawURLEncoding.EncodeToString([]byte(serverFirst))))
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
}

func (s *Server) serverFinal(ctx *fasthttp.RequestCtx, conv *scram.ServerConversation, clientFinal string) {
	serverFinal, err := conv.Step(clientFinal)
	if err != nil || !conv.Valid() {
		s.logger.Debug("msg", "Rejected client-final",
			"component", "haystacktest",
			"error", err)
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		return
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   conv.Username(),
		Issuer:    "haystacktest",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.opts.TokenTTL)),
	}).SignedString(s.opts.SigningKey)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	info := fmt.Sprintf("authToken=%s, hash=%s", signed, s.opts.Hash)
	switch {
	case s.opts.OmitServerSignature:
	case s.opts.TamperServerSignature:
		info += ", data=" + base64.RawURLEncoding.EncodeToString([]byte(tamper(serverFinal)))
	default:
		info += ", data=" + base64.RawURLEncoding.EncodeToString([]byte(serverFinal))
	}
	ctx.Response.Header.Set(core.HeaderAuthenticationInfo, info)
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func (s *Server) bearer(ctx *fasthttp.RequestCtx, authz *challenge.Challenge) {
	raw := authz.Param("authToken")
	if _, err := s.VerifyBearer(raw); err != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
}

// tamper flips one byte of the decoded server signature.
func tamper(serverFinal string) string {
	sig, ok := strings.CutPrefix(serverFinal, "v=")
	if !ok {
		return serverFinal
	}
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil || len(raw) == 0 {
		return serverFinal
	}
	raw[0] ^= 0xff
	return "v=" + base64.StdEncoding.EncodeToString(raw)
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
