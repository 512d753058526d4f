package services

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	t.Run("decodes to 64 random bytes", func(t *testing.T) {
		verifier, err := generateCodeVerifier()
		require.NoError(t, err)

		decoded, err := base64.RawURLEncoding.DecodeString(verifier)
		require.NoError(t, err)
		assert.Len(t, decoded, codeVerifierLength)
		assert.Len(t, verifier, 86)
	})

	t.Run("uses base64url encoding without padding", func(t *testing.T) {
		verifier, err := generateCodeVerifier()
		require.NoError(t, err)

		assert.NotContains(t, verifier, "=")
		assert.NotContains(t, verifier, "+")
		assert.NotContains(t, verifier, "/")
	})

	t.Run("generates unique verifiers", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			verifier, err := generateCodeVerifier()
			require.NoError(t, err)
			assert.False(t, seen[verifier], "duplicate verifier")
			seen[verifier] = true
		}
	})
}

func TestGenerateCodeChallenge(t *testing.T) {
	t.Run("matches RFC 7636 appendix B", func(t *testing.T) {
		challenge := generateCodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
		assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)
	})

	t.Run("always encodes a 32 byte digest", func(t *testing.T) {
		for _, verifier := range []string{"", "short", strings.Repeat("a", 1000)} {
			decoded, err := base64.RawURLEncoding.DecodeString(generateCodeChallenge(verifier))
			require.NoError(t, err)
			assert.Len(t, decoded, 32)
		}
	})
}

func TestGenerateState(t *testing.T) {
	state, err := generateState()
	require.NoError(t, err)

	// 32 bytes encode to 43 base64url characters
	assert.Len(t, state, 43)

	other, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, state, other)
}

func TestNewPKCEParams(t *testing.T) {
	params, err := newPKCEParams()
	require.NoError(t, err)

	assert.NotEmpty(t, params.State)
	assert.NotEmpty(t, params.Verifier)
	assert.Equal(t, generateCodeChallenge(params.Verifier), params.Challenge)
	assert.NotEqual(t, params.State, params.Verifier)
}
