// FILE: haystackauth/src/internal/token/token_test.go
package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	testCases := []struct {
		name     string
		authInfo string
		expected string
		wantErr  bool
	}{
		{name: "Typical", authInfo: "authToken=web-abc123, hash=SHA-256, data=dj1ybUY5", expected: "authToken=web-abc123"},
		{name: "SingleSegment", authInfo: "authToken=xyz", expected: "authToken=xyz"},
		{name: "Whitespace", authInfo: "  authToken=xyz  ,hash=SHA-1", expected: "authToken=xyz"},
		{name: "Empty", authInfo: "", wantErr: true},
		{name: "LeadingComma", authInfo: ", hash=SHA-1", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.authInfo)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrNoBearer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestHeaderValue(t *testing.T) {
	assert.Equal(t, "bearer authToken=xyz", HeaderValue("authToken=xyz"))
}

func TestValue(t *testing.T) {
	assert.Equal(t, "xyz", Value("authToken=xyz"))
	assert.Equal(t, "xyz", Value("AUTHTOKEN=xyz"))
	assert.Equal(t, "xyz", Value("xyz"))
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user",
		Issuer:    "haystack",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	t.Run("JWT", func(t *testing.T) {
		info, err := Inspect("authToken=" + signed)
		require.NoError(t, err)
		assert.Equal(t, "user", info.Subject)
		assert.Equal(t, "haystack", info.Issuer)
		assert.True(t, exp.Equal(info.ExpiresAt))
		assert.False(t, info.Expired(time.Now()))
		assert.True(t, info.Expired(exp.Add(time.Second)))
	})

	t.Run("Opaque", func(t *testing.T) {
		_, err := Inspect("authToken=web-abc123")
		assert.ErrorIs(t, err, ErrNotJWT)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := Inspect("a.b.c")
		assert.ErrorIs(t, err, ErrNotJWT)
	})

	t.Run("NoExpiry", func(t *testing.T) {
		info := &Info{}
		assert.False(t, info.Expired(time.Now()))
	})
}
