package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure FileBackend implements the interface.
var _ driven.SecretBackend = (*FileBackend)(nil)

// FileBackend stores each entry as <dir>/<name>.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates a file backend rooted at dir. The directory is
// created with 0700 permissions if missing.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("secrets: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create secrets directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Entry returns the store for one named secret.
func (b *FileBackend) Entry(name string) driven.SecretStore {
	return &fileEntry{backend: b, name: name}
}

type fileEntry struct {
	backend *FileBackend
	name    string
}

func (e *fileEntry) path() (string, error) {
	if e.name == "" || strings.ContainsAny(e.name, `/\`) || strings.HasPrefix(e.name, ".") {
		return "", fmt.Errorf("secrets: invalid entry name %q", e.name)
	}
	return filepath.Join(e.backend.dir, e.name), nil
}

func (e *fileEntry) Get(_ context.Context) ([]byte, error) {
	path, err := e.path()
	if err != nil {
		return nil, err
	}
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()

	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", e.name, err)
	}
	return blob, nil
}

func (e *fileEntry) Set(_ context.Context, blob []byte) error {
	path, err := e.path()
	if err != nil {
		return err
	}
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()

	tmp, err := os.CreateTemp(e.backend.dir, "."+e.name+"-*")
	if err != nil {
		return fmt.Errorf("write secret %s: %w", e.name, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write secret %s: %w", e.name, err)
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write secret %s: %w", e.name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write secret %s: %w", e.name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("write secret %s: %w", e.name, err)
	}
	success = true
	return nil
}

func (e *fileEntry) Clear(_ context.Context) error {
	path, err := e.path()
	if err != nil {
		return err
	}
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear secret %s: %w", e.name, err)
	}
	return nil
}
