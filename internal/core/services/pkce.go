package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCE code verifier length in random bytes (RFC 7636 allows 43-128 characters
// after encoding; 64 bytes encode to 86).
const codeVerifierLength = 64

// pkceParams is the per-authorization PKCE and CSRF material.
type pkceParams struct {
	State     string
	Verifier  string
	Challenge string
}

// newPKCEParams generates a fresh state nonce and S256 verifier/challenge pair.
func newPKCEParams() (pkceParams, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return pkceParams{}, fmt.Errorf("generate code verifier: %w", err)
	}
	state, err := generateState()
	if err != nil {
		return pkceParams{}, fmt.Errorf("generate state: %w", err)
	}
	return pkceParams{
		State:     state,
		Verifier:  verifier,
		Challenge: generateCodeChallenge(verifier),
	}, nil
}

// generateCodeVerifier creates a cryptographically random code verifier for PKCE.
func generateCodeVerifier() (string, error) {
	bytes := make([]byte, codeVerifierLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// generateCodeChallenge creates a S256 code challenge from the verifier.
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// generateState creates a random state parameter for CSRF protection.
func generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
