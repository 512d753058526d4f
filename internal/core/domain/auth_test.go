package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenEnvelope_ExpiresWithin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"already expired", now.Add(-time.Minute), true},
		{"inside window", now.Add(4 * time.Minute), true},
		{"exactly at window", now.Add(5 * time.Minute), true},
		{"outside window", now.Add(6 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &TokenEnvelope{AccessToken: "a", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, env.ExpiresWithin(now, 5*time.Minute))
		})
	}
}

func TestManualAuthSession_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &ManualAuthSession{ExpiresAt: now.Add(10 * time.Minute)}

	assert.False(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(9*time.Minute)))
	assert.True(t, s.Expired(now.Add(10*time.Minute)))
	assert.True(t, s.Expired(now.Add(11*time.Minute)))
}

func TestManualAuthSession_Challenge(t *testing.T) {
	s := &ManualAuthSession{
		SessionID:    "sid",
		State:        "secret-state",
		CodeVerifier: "secret-verifier",
		RedirectURI:  "http://127.0.0.1:50000/callback",
		AuthorizeURL: "https://accounts.example.com/auth?x=1",
	}

	c := s.Challenge()

	assert.Equal(t, "sid", c.SessionID)
	assert.Equal(t, s.AuthorizeURL, c.AuthorizeURL)
	assert.Equal(t, s.RedirectURI, c.RedirectURI)
}
