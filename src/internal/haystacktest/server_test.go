// FILE: haystackauth/src/internal/haystacktest/server_test.go
package haystacktest

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"haystackauth/src/internal/challenge"
	"haystackauth/src/internal/token"
	"haystackauth/src/internal/transport"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xdg-go/scram"
)

func startServer(t *testing.T, opts Options) (*Server, *transport.HTTPTransport) {
	t.Helper()

	srv, err := Start(opts, log.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	tr, err := srv.Transport(5*time.Second, log.NewLogger())
	require.NoError(t, err)
	return srv, tr
}

func send(t *testing.T, tr transport.Transport, url, authorization string) *transport.Response {
	t.Helper()
	resp, err := tr.Send(context.Background(), "GET", url, map[string]string{"Authorization": authorization})
	require.NoError(t, err)
	return resp
}

// The fixture is exercised with an independent SCRAM client so that auth
// tests do not rely on it agreeing with itself.
func TestServer_ReferenceClient(t *testing.T) {
	for _, hash := range []string{"SHA-1", "SHA-256"} {
		t.Run(hash, func(t *testing.T) {
			srv, tr := startServer(t, Options{
				Users: map[string]string{"user": "pencil"},
				Hash:  hash,
			})
			about := srv.URL() + "/about"

			resp := send(t, tr, about, "hello username="+base64.RawURLEncoding.EncodeToString([]byte("user")))
			require.Equal(t, 401, resp.StatusCode)
			hello, err := challenge.ParseFirst(resp.Header.Get("WWW-Authenticate"))
			require.NoError(t, err)
			assert.Equal(t, "scram", hello.Scheme)
			assert.Equal(t, hash, hello.Param("hash"))

			gen, err := hashGenerator(hash)
			require.NoError(t, err)
			client, err := gen.NewClient("user", "pencil", "")
			require.NoError(t, err)
			conv := client.NewConversation()

			clientFirst, err := conv.Step("")
			require.NoError(t, err)
			resp = send(t, tr, about, "scram data="+base64.RawURLEncoding.EncodeToString([]byte(clientFirst))+
				", handshakeToken="+hello.Param("handshakeToken"))
			require.Equal(t, 401, resp.StatusCode)

			first, err := challenge.ParseFirst(resp.Header.Get("WWW-Authenticate"))
			require.NoError(t, err)
			serverFirst, err := base64.RawURLEncoding.DecodeString(first.Param("data"))
			require.NoError(t, err)
			assert.NotEqual(t, hello.Param("handshakeToken"), first.Param("handshakeToken"), "token rotates")

			clientFinal, err := conv.Step(string(serverFirst))
			require.NoError(t, err)
			resp = send(t, tr, about, "scram data="+base64.RawURLEncoding.EncodeToString([]byte(clientFinal))+
				", handshakeToken="+first.Param("handshakeToken"))
			require.Equal(t, 200, resp.StatusCode)

			params, err := challenge.ParseParams(resp.Header.Get("Authentication-Info"))
			require.NoError(t, err)
			serverFinal, err := base64.RawURLEncoding.DecodeString(params.Value("data"))
			require.NoError(t, err)
			_, err = conv.Step(string(serverFinal))
			require.NoError(t, err)
			assert.True(t, conv.Valid())

			claims, err := srv.VerifyBearer(params.Value("authToken"))
			require.NoError(t, err)
			assert.Equal(t, "user", claims.Subject)

			bearer, err := token.Extract(resp.Header.Get("Authentication-Info"))
			require.NoError(t, err)
			resp = send(t, tr, about, token.HeaderValue(bearer))
			assert.Equal(t, 200, resp.StatusCode)
		})
	}
}

func TestServer_WrongPassword(t *testing.T) {
	srv, tr := startServer(t, Options{Users: map[string]string{"user": "pencil"}})
	about := srv.URL() + "/about"

	client, err := scram.SHA256.NewClient("user", "wrong", "")
	require.NoError(t, err)
	conv := client.NewConversation()

	clientFirst, err := conv.Step("")
	require.NoError(t, err)
	resp := send(t, tr, about, "scram data="+base64.RawURLEncoding.EncodeToString([]byte(clientFirst))+", handshakeToken=x")
	require.Equal(t, 401, resp.StatusCode)

	first, err := challenge.ParseFirst(resp.Header.Get("WWW-Authenticate"))
	require.NoError(t, err)
	serverFirst, err := base64.RawURLEncoding.DecodeString(first.Param("data"))
	require.NoError(t, err)

	clientFinal, err := conv.Step(string(serverFirst))
	require.NoError(t, err)
	resp = send(t, tr, about, "scram data="+base64.RawURLEncoding.EncodeToString([]byte(clientFinal))+
		", handshakeToken="+first.Param("handshakeToken"))
	assert.Equal(t, 403, resp.StatusCode)
}

func TestServer_Redirect(t *testing.T) {
	srv, tr := startServer(t, Options{Redirects: 1})

	resp := send(t, tr, srv.URL()+"/about", "hello username=dXNlcg")
	assert.Equal(t, 303, resp.StatusCode)
	assert.Equal(t, "/api/moved1/about", resp.Header.Get("Location"))

	resp = send(t, tr, "http://"+Host+"/api/moved1/about", "hello username=dXNlcg")
	assert.Equal(t, 401, resp.StatusCode)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/api/demo/about", reqs[0].Path)
	assert.Equal(t, "/api/moved1/about", reqs[1].Path)
}

func TestServer_Errors(t *testing.T) {
	srv, tr := startServer(t, Options{})

	assert.Equal(t, 404, send(t, tr, srv.URL()+"/other", "hello username=dXNlcg").StatusCode)
	assert.Equal(t, 400, send(t, tr, srv.URL()+"/about", `broken "`).StatusCode)
	assert.Equal(t, 400, send(t, tr, srv.URL()+"/about", "basic realm=x").StatusCode)
	assert.Equal(t, 401, send(t, tr, srv.URL()+"/about", "bearer authToken=not-a-jwt").StatusCode)
}

func TestStart_UnsupportedHash(t *testing.T) {
	_, err := Start(Options{Hash: "MD5"}, nil)
	assert.Error(t, err)
}

func TestTamper(t *testing.T) {
	orig := "v=" + base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	assert.NotEqual(t, orig, tamper(orig))
	assert.Equal(t, "e=other", tamper("e=other"))
}

func TestServer_TLS(t *testing.T) {
	t.Run("TrustedCA", func(t *testing.T) {
		srv, err := Start(Options{TLS: true}, log.NewLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = srv.Close() })
		assert.Equal(t, "https://"+Host+BasePath, srv.URL())

		tlsCfg, err := srv.ClientTLS(t.TempDir())
		require.NoError(t, err)
		assert.FileExists(t, tlsCfg.ServerCAFile)
		assert.Empty(t, tlsCfg.ClientCertFile)

		tr, err := srv.TransportTLS(5*time.Second, tlsCfg, log.NewLogger())
		require.NoError(t, err)
		resp := send(t, tr, srv.URL()+"/about", "hello username=dXNlcg")
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("UntrustedCA", func(t *testing.T) {
		srv, err := Start(Options{TLS: true}, log.NewLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = srv.Close() })

		tr, err := srv.Transport(5*time.Second, log.NewLogger())
		require.NoError(t, err)
		_, err = tr.Send(context.Background(), "GET", srv.URL()+"/about", nil)
		assert.Error(t, err)
		assert.Empty(t, srv.Requests())
	})

	t.Run("ClientCertificateRequired", func(t *testing.T) {
		srv, err := Start(Options{RequireClientCert: true}, log.NewLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = srv.Close() })

		tlsCfg, err := srv.ClientTLS(t.TempDir())
		require.NoError(t, err)
		assert.FileExists(t, tlsCfg.ClientCertFile)
		assert.FileExists(t, tlsCfg.ClientKeyFile)

		tr, err := srv.TransportTLS(5*time.Second, tlsCfg, log.NewLogger())
		require.NoError(t, err)
		resp := send(t, tr, srv.URL()+"/about", "hello username=dXNlcg")
		assert.Equal(t, 401, resp.StatusCode)

		// Without the client certificate the handshake fails
		tlsCfg.ClientCertFile, tlsCfg.ClientKeyFile = "", ""
		tr, err = srv.TransportTLS(5*time.Second, tlsCfg, log.NewLogger())
		require.NoError(t, err)
		_, err = tr.Send(context.Background(), "GET", srv.URL()+"/about", nil)
		assert.Error(t, err)
	})

	t.Run("PlainServer", func(t *testing.T) {
		srv, _ := startServer(t, Options{})
		_, err := srv.ClientTLS(t.TempDir())
		assert.Error(t, err)
	})
}
