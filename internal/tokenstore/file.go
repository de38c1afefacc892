package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
)

const nonceSize = 24

var ErrSealedData = errors.New("token file cannot be opened with this key")

// File keeps all keys in one file sealed with NaCl secretbox. Writes go to a
// temporary file that is renamed over the original.
type File struct {
	path string
	key  [32]byte
	mu   sync.Mutex
}

func NewFile(path string, key []byte) (*File, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("token file key must be 32 bytes, got %d", len(key))
	}
	f := &File{path: path}
	copy(f.key[:], key)
	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return v, nil
}

// Set seals every key into one new file; the rename makes it all-or-nothing.
func (f *File) Set(_ context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		data[k] = v
	}
	return f.save(data)
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := data[k]; ok {
			delete(data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(data)
}

func (f *File) load() (map[string]string, error) {
	data := make(map[string]string)

	sealed, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(sealed) < nonceSize {
		return nil, ErrSealedData
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &f.key)
	if !ok {
		return nil, ErrSealedData
	}

	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	plain, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &f.key)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
