package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure SecretBackend implements the interface.
var _ driven.SecretBackend = (*SecretBackend)(nil)

// SecretBackend keeps named secrets in memory.
type SecretBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewSecretBackend creates an empty in-memory secret backend.
func NewSecretBackend() *SecretBackend {
	return &SecretBackend{entries: make(map[string][]byte)}
}

// Entry returns the store for one named secret.
func (b *SecretBackend) Entry(name string) driven.SecretStore {
	return &secretEntry{backend: b, name: name}
}

type secretEntry struct {
	backend *SecretBackend
	name    string
}

func (e *secretEntry) Get(_ context.Context) ([]byte, error) {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	blob, ok := e.backend.entries[e.name]
	if !ok {
		return nil, nil
	}
	return slices.Clone(blob), nil
}

func (e *secretEntry) Set(_ context.Context, blob []byte) error {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	e.backend.entries[e.name] = slices.Clone(blob)
	return nil
}

func (e *secretEntry) Clear(_ context.Context) error {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	delete(e.backend.entries, e.name)
	return nil
}
