// Package archive persists evidence bundles for executed and rejected
// contracts in content-addressed storage. A bundle's reference is the
// SHA-256 of its canonical bytes, so identical exports land on the
// same blob and references are tamper-evident.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// HashPrefix tags every blob reference with its digest algorithm.
const HashPrefix = "sha256:"

// BlobStore is content-addressed blob storage. Put is idempotent: the
// same bytes always yield the same reference.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
}

// refDigest validates a blob reference and returns the bare hex digest.
func refDigest(ref string) (string, error) {
	raw, ok := strings.CutPrefix(ref, HashPrefix)
	if !ok {
		return "", fmt.Errorf("blob ref %q: missing %s prefix", ref, HashPrefix)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("blob ref %q: %w", ref, err)
	}
	return raw, nil
}

func digest(data []byte) (ref, raw string) {
	sum := sha256.Sum256(data)
	raw = hex.EncodeToString(sum[:])
	return HashPrefix + raw, raw
}

// FileStore keeps blobs as files under one directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(raw string) string {
	return filepath.Join(s.dir, raw+".bundle")
}

func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	ref, raw := digest(data)
	path := s.path(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	// Write-then-rename so a crashed export never leaves a readable
	// partial bundle at the final path.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit bundle: %w", err)
	}
	return ref, nil
}

func (s *FileStore) Get(ctx context.Context, ref string) ([]byte, error) {
	raw, err := refDigest(ref)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(raw))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("bundle %s not found", ref)
		}
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, ref string) (bool, error) {
	raw, err := refDigest(ref)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = os.Stat(s.path(raw))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat bundle: %w", err)
}

func (s *FileStore) Delete(ctx context.Context, ref string) error {
	raw, err := refDigest(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(raw)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete bundle: %w", err)
	}
	return nil
}
