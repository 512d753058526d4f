package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// IdentityFileName is the default name of the age identity file.
const IdentityFileName = "identity.age"

// Ensure Sealer implements the interface.
var _ driven.SecretBackend = (*Sealer)(nil)

// Sealer encrypts every blob to an age X25519 identity before handing it to
// the wrapped backend.
type Sealer struct {
	inner    driven.SecretBackend
	identity *age.X25519Identity
}

// NewSealer wraps inner so every entry is sealed with identity.
func NewSealer(inner driven.SecretBackend, identity *age.X25519Identity) *Sealer {
	return &Sealer{inner: inner, identity: identity}
}

// Entry returns the sealed store for one named secret.
func (s *Sealer) Entry(name string) driven.SecretStore {
	return &sealedEntry{inner: s.inner.Entry(name), identity: s.identity, name: name}
}

type sealedEntry struct {
	inner    driven.SecretStore
	identity *age.X25519Identity
	name     string
}

func (e *sealedEntry) Get(ctx context.Context) ([]byte, error) {
	ciphertext, err := e.inner.Get(ctx)
	if err != nil || ciphertext == nil {
		return nil, err
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("unseal secret %s: %w", e.name, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("unseal secret %s: %w", e.name, err)
	}
	return plaintext, nil
}

func (e *sealedEntry) Set(ctx context.Context, blob []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.identity.Recipient())
	if err != nil {
		return fmt.Errorf("seal secret %s: %w", e.name, err)
	}
	if _, err := w.Write(blob); err != nil {
		return fmt.Errorf("seal secret %s: %w", e.name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("seal secret %s: %w", e.name, err)
	}
	return e.inner.Set(ctx, buf.Bytes())
}

func (e *sealedEntry) Clear(ctx context.Context) error {
	return e.inner.Clear(ctx)
}

// LoadOrCreateIdentity reads the age identity at path, generating and
// writing a new one (0600) if the file does not exist.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse identity %s: %w", path, err)
		}
		return identity, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read identity: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create identity directory: %w", err)
	}
	// A concurrent creator wins; re-read its file.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return LoadOrCreateIdentity(path)
	}
	if err != nil {
		return nil, fmt.Errorf("write identity: %w", err)
	}
	if _, err := fmt.Fprintln(f, identity.String()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write identity: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write identity: %w", err)
	}
	return identity, nil
}
