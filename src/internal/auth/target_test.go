// FILE: haystackauth/src/internal/auth/target_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	testCases := []struct {
		name    string
		uri     string
		want    Target
		wantURL string
		wantErr bool
	}{
		{
			name:    "TrailingSlash",
			uri:     "http://localhost:8080/api/demo/",
			want:    Target{Scheme: "http", Host: "localhost", Port: "8080", Path: "/api/demo"},
			wantURL: "http://localhost:8080/api/demo/about",
		},
		{
			name:    "NoPort",
			uri:     "HTTPS://skyspark.example.com/api/site",
			want:    Target{Scheme: "https", Host: "skyspark.example.com", Path: "/api/site"},
			wantURL: "https://skyspark.example.com/api/site/about",
		},
		{
			name:    "NoPath",
			uri:     "http://h",
			want:    Target{Scheme: "http", Host: "h"},
			wantURL: "http://h/about",
		},
		{
			name:    "IPv6",
			uri:     "http://[::1]/api",
			want:    Target{Scheme: "http", Host: "::1", Path: "/api"},
			wantURL: "http://[::1]/api/about",
		},
		{
			name:    "IPv6WithPort",
			uri:     "http://[::1]:8080/api",
			want:    Target{Scheme: "http", Host: "::1", Port: "8080", Path: "/api"},
			wantURL: "http://[::1]:8080/api/about",
		},
		{
			name:    "UnsupportedSchemeParses",
			uri:     "ftp://h/api",
			want:    Target{Scheme: "ftp", Host: "h", Path: "/api"},
			wantURL: "ftp://h/api/about",
		},
		{name: "MissingHost", uri: "/api/demo", wantErr: true},
		{name: "Garbage", uri: "http://%zz", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTarget(tc.uri)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
			assert.Equal(t, tc.wantURL, got.URL("about"))
		})
	}
}

func TestTarget_Redirect(t *testing.T) {
	base := &Target{Scheme: "http", Host: "old.example.com", Port: "8080", Path: "/api/demo"}

	testCases := []struct {
		name     string
		location string
		want     Target
		wantErr  bool
	}{
		{
			name:     "AbsolutePath",
			location: "/api/other/about",
			want:     Target{Scheme: "http", Host: "old.example.com", Port: "8080", Path: "/api/other"},
		},
		{
			name:     "RelativePath",
			location: "moved/about",
			want:     Target{Scheme: "http", Host: "old.example.com", Port: "8080", Path: "/api/demo/moved"},
		},
		{
			name:     "AbsoluteURL",
			location: "https://new.example.com/api/demo/about",
			want:     Target{Scheme: "https", Host: "new.example.com", Path: "/api/demo"},
		},
		{
			name:     "Root",
			location: "/about",
			want:     Target{Scheme: "http", Host: "old.example.com", Port: "8080", Path: ""},
		},
		{name: "Empty", location: "", wantErr: true},
		{name: "Invalid", location: "http://%zz/", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := base.Redirect(tc.location, "about")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}

	assert.Equal(t, "/api/demo", base.Path, "receiver unchanged")
}

func TestState_String(t *testing.T) {
	testCases := map[State]string{
		StateInit:          "init",
		StateHelloSent:     "hello_sent",
		StateRedirected:    "redirected",
		StateChallenged:    "challenged",
		StateProofSent:     "proof_sent",
		StateAuthenticated: "authenticated",
		StateFailed:        "failed",
	}
	for state, want := range testCases {
		assert.Equal(t, want, state.String())
	}
}

func TestProtocolError_Error(t *testing.T) {
	assert.Equal(t, ErrBadCredentials.Error(),
		(&ProtocolError{Stage: StageClientFinal, Status: 403, Err: ErrBadCredentials}).Error())
	assert.Equal(t, "client-first failed with status 500",
		(&ProtocolError{Stage: StageClientFirst, Status: 500, Err: ErrUnexpectedStatus}).Error())
	assert.Equal(t, "redirect: too many redirects",
		(&ProtocolError{Stage: StageRedirect, Status: 303, Err: ErrTooManyRedirects}).Error())
}
