package driven

import "context"

// SecretStore persists one opaque credential blob.
// A missing blob is not an error: Get returns (nil, nil) and Clear is a no-op.
type SecretStore interface {
	// Get returns the stored blob, or nil if nothing is stored.
	Get(ctx context.Context) ([]byte, error)

	// Set replaces the stored blob.
	Set(ctx context.Context, blob []byte) error

	// Clear removes the stored blob.
	Clear(ctx context.Context) error
}

// SecretBackend hands out named SecretStore entries from one storage backend.
type SecretBackend interface {
	Entry(name string) SecretStore
}

// Secret entry names.
const (
	SecretGoogleToken        = "google_oauth_token"
	SecretGoogleClientSecret = "google_client_secret"
)
