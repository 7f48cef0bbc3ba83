// FILE: haystackauth/src/internal/challenge/parser_test.go
package challenge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Next(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		expected []*Challenge
	}{
		{
			name:   "SchemeOnly",
			header: "Negotiate",
			expected: []*Challenge{
				{Scheme: "negotiate", Params: Params{}},
			},
		},
		{
			name:   "HelloChallenge",
			header: "SCRAM hash=SHA-256, handshakeToken=dXNlcg",
			expected: []*Challenge{
				{Scheme: "scram", Params: Params{"hash": "SHA-256", "handshaketoken": "dXNlcg"}},
			},
		},
		{
			name:   "PaddedBase64Value",
			header: "scram data=cj1hYmMscz1kZWYsaT00MDk2==, handshakeToken=abc",
			expected: []*Challenge{
				{Scheme: "scram", Params: Params{"data": "cj1hYmMscz1kZWYsaT00MDk2==", "handshaketoken": "abc"}},
			},
		},
		{
			name:   "WhitespaceAroundEquals",
			header: "scram hash = SHA-1 ,\tdata=x",
			expected: []*Challenge{
				{Scheme: "scram", Params: Params{"hash": "SHA-1", "data": "x"}},
			},
		},
		{
			name:   "QuotedValue",
			header: `Basic realm="Haystack, inc"`,
			expected: []*Challenge{
				{Scheme: "basic", Params: Params{"realm": "Haystack, inc"}},
			},
		},
		{
			name:   "EscapedQuote",
			header: `x v="a\"b"`,
			expected: []*Challenge{
				{Scheme: "x", Params: Params{"v": `a"b`}},
			},
		},
		{
			name:   "TwoSchemesBacktrack",
			header: "scram hash=SHA-256, scram2 data=xyz",
			expected: []*Challenge{
				{Scheme: "scram", Params: Params{"hash": "SHA-256"}},
				{Scheme: "scram2", Params: Params{"data": "xyz"}},
			},
		},
		{
			name:   "ThreeSchemesMixed",
			header: `Bearer realm="a", Basic, hmac hash=SHA-1, salt=abc`,
			expected: []*Challenge{
				{Scheme: "bearer", Params: Params{"realm": "a"}},
				{Scheme: "basic", Params: Params{}},
				{Scheme: "hmac", Params: Params{"hash": "SHA-1", "salt": "abc"}},
			},
		},
		{
			name:   "DuplicateKeyLastWins",
			header: "scram data=first, data=second",
			expected: []*Challenge{
				{Scheme: "scram", Params: Params{"data": "second"}},
			},
		},
		{
			name:   "TrailingSeparator",
			header: "scram hash=SHA-256, ",
			expected: []*Challenge{
				{Scheme: "scram", Params: Params{"hash": "SHA-256"}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParser(tc.header)
			for i, want := range tc.expected {
				got, err := p.Next()
				require.NoError(t, err)
				require.NotNil(t, got, "challenge %d missing", i)
				assert.Equal(t, want.Scheme, got.Scheme)
				assert.Equal(t, want.Params, got.Params)
			}

			// End of input is reported as nil, repeatedly
			for range 2 {
				got, err := p.Next()
				require.NoError(t, err)
				assert.Nil(t, got)
			}
		})
	}
}

func TestParser_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		header string
	}{
		{name: "UnterminatedQuote", header: `scram data="abc`},
		{name: "UnterminatedEscape", header: `scram data="abc\`},
		{name: "MissingValueAtEOF", header: "scram hash="},
		{name: "EmptyValue", header: "scram hash=, data=x"},
		{name: "MissingSeparator", header: "scram hash=SHA-256 data=x"},
		{name: "LeadingComma", header: ", scram"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseChallenges(tc.header)
			require.Error(t, err)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
		})
	}
}

func TestParseFirst(t *testing.T) {
	t.Run("TakesFirstOnly", func(t *testing.T) {
		c, err := ParseFirst("scram hash=SHA-256, hmac hash=SHA-1")
		require.NoError(t, err)
		assert.Equal(t, "scram", c.Scheme)
		assert.Equal(t, "SHA-256", c.Param("HASH"))
	})

	t.Run("EmptyHeader", func(t *testing.T) {
		_, err := ParseFirst("")
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
	})
}

func TestParseParams(t *testing.T) {
	t.Run("AuthenticationInfo", func(t *testing.T) {
		params, err := ParseParams("authToken=web-abc123, hash=SHA-256, data=dj1ybUY5")
		require.NoError(t, err)
		assert.Equal(t, "web-abc123", params.Value("authtoken"))
		assert.Equal(t, "SHA-256", params.Value("Hash"))
		assert.Equal(t, "dj1ybUY5", params.Value("data"))
	})

	t.Run("BareToken", func(t *testing.T) {
		_, err := ParseParams("web-abc123, hash=SHA-256")
		require.Error(t, err)
	})
}

func TestParams_CaseInsensitive(t *testing.T) {
	p := Params{"handshaketoken": "tok"}

	v, ok := p.Get("handshakeToken")
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	_, ok = p.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, "", p.Value("missing"))
}

func TestChallenge_String(t *testing.T) {
	c := &Challenge{Scheme: "scram", Params: Params{"hash": "SHA-256", "data": "x"}}
	assert.Equal(t, "scram data=x, hash=SHA-256", c.String())

	bare := &Challenge{Scheme: "basic", Params: Params{}}
	assert.Equal(t, "basic", bare.String())
}
