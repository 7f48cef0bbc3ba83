// FILE: haystackauth/src/cmd/haystack-auth/commands/login.go
package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"haystackauth/src/internal/auth"
	"haystackauth/src/internal/config"
	"haystackauth/src/internal/core"
	"haystackauth/src/internal/token"
	"haystackauth/src/internal/transport"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

// LoginCommand performs a login and prints the resulting headers.
type LoginCommand struct {
	ctx     context.Context
	output  io.Writer
	errOut  io.Writer
	input   io.Reader
	stdinFd int

	// Replaces the TCP dialer when set
	dial fasthttp.DialFunc
}

func NewLoginCommand(ctx context.Context) *LoginCommand {
	return &LoginCommand{
		ctx:     ctx,
		output:  os.Stdout,
		errOut:  os.Stderr,
		input:   os.Stdin,
		stdinFd: int(os.Stdin.Fd()),
	}
}

// loginResult is the JSON form of a successful login.
type loginResult struct {
	Headers  map[string]string `json:"headers"`
	Attempts int               `json:"attempts"`
	Token    *tokenDetails     `json:"token,omitempty"`
}

type tokenDetails struct {
	Subject   string     `json:"subject,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (lc *LoginCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("login", flag.ContinueOnError)
	cmd.SetOutput(lc.errOut)

	var (
		configFile   = cmd.String("config", "", "Config file path")
		uri          = cmd.String("uri", "", "Server base URI, e.g. http://host:8080/api/demo")
		username     = cmd.String("u", "", "Username")
		usernameLong = cmd.String("user", "", "Username")
		password     = cmd.String("p", "", "Password (will prompt if not provided)")
		passwordLong = cmd.String("password", "", "Password (will prompt if not provided)")

		insecure    = cmd.Bool("insecure", false, "Skip TLS certificate verification")
		timeout     = cmd.Duration("timeout", 0, "Per-request timeout, e.g. 10s (overrides config)")
		proxyHeader = cmd.String("proxy-header", "", "Also store the bearer under this header")
		retries     = cmd.Int("retries", 0, "Maximum login attempts (overrides config)")
		requireSig  = cmd.Bool("require-signature", false, "Fail when the server sends no signature")
		normalize   = cmd.Bool("normalize", false, "Apply SASLprep to the password")

		jsonOut   = cmd.Bool("json", false, "Print the result as JSON")
		quiet     = cmd.Bool("q", false, "Suppress log output")
		quietLong = cmd.Bool("quiet", false, "Suppress log output")
		logLevel  = cmd.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	)

	cmd.Usage = func() {
		fmt.Fprint(lc.errOut, lc.Help())
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s): %s", strings.Join(cmd.Args(), " "))
	}

	cfg, _, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	// Flags override config
	cfg.Target.URI = coalesceString(*uri, cfg.Target.URI)
	cfg.Target.Username = coalesceString(*username, *usernameLong, cfg.Target.Username)
	if *timeout > 0 {
		cfg.Auth.TimeoutMS = timeout.Milliseconds()
	}
	if *retries > 0 {
		cfg.Auth.MaxAttempts = int64(*retries)
	}
	cfg.Auth.ProxyHeader = coalesceString(*proxyHeader, cfg.Auth.ProxyHeader)
	cfg.Auth.RequireServerSignature = coalesceBool(*requireSig, cfg.Auth.RequireServerSignature)
	cfg.Auth.NormalizePassword = coalesceBool(*normalize, cfg.Auth.NormalizePassword)
	if *insecure {
		if cfg.TLS == nil {
			cfg.TLS = config.DefaultTLSConfig()
		}
		cfg.TLS.RejectUnauthorized = false
	}
	if *logLevel != "" {
		if cfg.Logging == nil {
			cfg.Logging = config.DefaultLogConfig()
		}
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		cmd.Usage()
		return err
	}

	pass := []byte(coalesceString(*password, *passwordLong, cfg.Target.Password))
	cfg.Target.Password = ""
	if len(pass) == 0 {
		if pass, err = lc.readPassword(); err != nil {
			return err
		}
	}
	defer zero(pass)

	logger, err := initializeLogger(cfg.Logging, coalesceBool(*quiet, *quietLong))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Shutdown(2 * time.Second)
	}()

	headers, attempts, err := lc.login(cfg, pass, logger)
	if err != nil {
		return &ExitError{Code: loginExitCode(err), Err: err}
	}

	return lc.printResult(headers, attempts, *jsonOut)
}

// login runs up to MaxAttempts handshakes on one client, paced by a rate
// limiter. Only transient failures are retried.
func (lc *LoginCommand) login(cfg *config.Config, password []byte, logger *log.Logger) (map[string]string, int, error) {
	timeout := time.Duration(cfg.Auth.TimeoutMS) * time.Millisecond

	tr, err := transport.NewHTTPTransport(transport.HTTPOptions{
		Timeout: timeout,
		TLS:     cfg.TLS,
		Dial:    lc.dial,
	}, logger)
	if err != nil {
		return nil, 0, err
	}
	defer tr.CloseIdleConnections()

	opts := []auth.Option{
		auth.WithTimeout(timeout),
		auth.WithRequireServerSignature(cfg.Auth.RequireServerSignature),
		auth.WithNormalizePassword(cfg.Auth.NormalizePassword),
	}
	if cfg.Auth.ProxyHeader != "" {
		opts = append(opts, auth.WithProxyHeader(cfg.Auth.ProxyHeader))
	}

	client, err := auth.NewClient(cfg.Target.URI, cfg.Target.Username, password, tr, logger, opts...)
	if err != nil {
		return nil, 0, err
	}
	defer client.Close()

	maxAttempts := int(cfg.Auth.MaxAttempts)
	if maxAttempts < 1 {
		maxAttempts = core.DefaultMaxAttempts
	}
	interval := time.Duration(cfg.Auth.RetryIntervalMS) * time.Millisecond
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		if err := limiter.Wait(lc.ctx); err != nil {
			if lastErr != nil {
				return nil, attempt, lastErr
			}
			return nil, attempt, &auth.TransportError{URL: cfg.Target.URI, Err: err}
		}

		attempt++
		headers, err := client.Authenticate(lc.ctx)
		if err == nil {
			return headers, attempt, nil
		}
		lastErr = err

		if !lc.retryable(err) {
			break
		}
		if attempt < maxAttempts {
			logger.Warn("msg", "Login attempt failed, retrying",
				"component", "login",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err)
		}
	}

	return nil, attempt, lastErr
}

// retryable reports failures that another attempt may not repeat.
func (lc *LoginCommand) retryable(err error) bool {
	if lc.ctx.Err() != nil {
		return false
	}

	var transportErr *auth.TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var protoErr *auth.ProtocolError
	if errors.As(err, &protoErr) && errors.Is(err, auth.ErrUnexpectedStatus) {
		return protoErr.Status >= http.StatusInternalServerError
	}
	return false
}

func loginExitCode(err error) int {
	var transportErr *auth.TransportError
	if errors.As(err, &transportErr) || errors.Is(err, auth.ErrUnexpectedStatus) {
		return ExitGeneral
	}
	return ExitAuthFailed
}

// readPassword prompts on a terminal, otherwise reads the first line of
// input.
func (lc *LoginCommand) readPassword() ([]byte, error) {
	if term.IsTerminal(lc.stdinFd) {
		fmt.Fprint(lc.errOut, "Password: ")
		pass, err := term.ReadPassword(lc.stdinFd)
		fmt.Fprintln(lc.errOut)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		if len(pass) == 0 {
			return nil, fmt.Errorf("password is required")
		}
		return pass, nil
	}

	line, err := bufio.NewReader(lc.input).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	pass := bytes.TrimRight(line, "\r\n")
	if len(pass) == 0 {
		return nil, fmt.Errorf("password is required")
	}
	return pass, nil
}

func (lc *LoginCommand) printResult(headers map[string]string, attempts int, asJSON bool) error {
	details := inspectBearer(headers[core.HeaderAuthorization])

	if asJSON {
		enc := json.NewEncoder(lc.output)
		enc.SetIndent("", "  ")
		return enc.Encode(loginResult{
			Headers:  headers,
			Attempts: attempts,
			Token:    details,
		})
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(lc.output, "%s: %s\n", name, headers[name])
	}

	// Token details go to stderr so stdout stays a header list
	if details != nil {
		if details.Subject != "" {
			fmt.Fprintf(lc.errOut, "Token subject: %s\n", details.Subject)
		}
		if details.ExpiresAt != nil {
			fmt.Fprintf(lc.errOut, "Token expires: %s (in %s)\n",
				details.ExpiresAt.Format(time.RFC3339),
				time.Until(*details.ExpiresAt).Round(time.Second))
		}
	}
	return nil
}

// inspectBearer returns the JWT claims of an Authorization value, or nil
// for opaque tokens.
func inspectBearer(authorization string) *tokenDetails {
	bearer, ok := strings.CutPrefix(authorization, core.SchemeBearer+" ")
	if !ok {
		return nil
	}
	info, err := token.Inspect(bearer)
	if err != nil {
		return nil
	}

	d := &tokenDetails{Subject: info.Subject, Issuer: info.Issuer}
	if !info.IssuedAt.IsZero() {
		d.IssuedAt = &info.IssuedAt
	}
	if !info.ExpiresAt.IsZero() {
		d.ExpiresAt = &info.ExpiresAt
	}
	return d
}

// loadConfig loads the layered configuration from path, or from the
// resolved default location when path is empty. An explicit path must exist.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = config.GetConfigPath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, path, &ExitError{Code: ExitConfigNotFound, Err: fmt.Errorf("config file not found: %s", path)}
	}

	cfg, err := config.LoadFile(path, nil)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (lc *LoginCommand) Description() string {
	return "Log in to a Haystack server and print the auth headers"
}

func (lc *LoginCommand) Help() string {
	return `Login Command - Authenticate against a Project Haystack server

Usage: haystack-auth login [options]

Runs the hello / SCRAM handshake against <uri>/about and prints the headers
to attach to later requests, one "Name: value" per line.

Options:
  -config <path>         Config file path
  -uri <uri>             Server base URI, e.g. http://host:8080/api/demo
  -u, -user <name>       Username
  -p, -password <pass>   Password (prompted when omitted; read from stdin when piped)
  -insecure              Skip TLS certificate verification
  -timeout <duration>    Per-request timeout
  -proxy-header <name>   Also store the bearer under this header
  -retries <n>           Maximum login attempts for transient failures
  -require-signature     Fail when the server does not prove its identity
  -normalize             Apply SASLprep to the password
  -json                  Print the result as JSON
  -q, -quiet             Suppress log output
  -log-level <level>     debug, info, warn, error

Examples:
  haystack-auth login -uri http://localhost:8080/api/demo -u su
  echo "$PASS" | haystack-auth login -config ./haystack-auth.toml -json
`
}
