package cas

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/klauspost/compress/zstd"
)

// Store keeps rendered pages addressed by the SHA-256 of their content.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Default returns the store under the user's cache directory.
func Default() *Store {
	return New(config.CASDir())
}

func (s *Store) Root() string {
	return s.root
}

// Hash returns the address content would be stored under.
func Hash(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

// path returns the sharded file path for a hash: <root>/<first2>/<rest>.md.zst
func (s *Store) path(hash string) (string, error) {
	if len(hash) < 3 {
		return "", fmt.Errorf("invalid CAS hash %q", hash)
	}
	return filepath.Join(s.root, hash[:2], hash[2:]+".md.zst"), nil
}

// Has reports whether a page with the given hash is stored.
func (s *Store) Has(hash string) bool {
	p, err := s.path(hash)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Write stores content, returning its hash.
// If the content already exists, this is a no-op.
func (s *Store) Write(content string) (string, error) {
	hash := Hash(content)
	p, _ := s.path(hash)
	if _, err := os.Stat(p); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("creating CAS directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		w.Close()
		return "", fmt.Errorf("compressing CAS content: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing zstd writer: %w", err)
	}

	// Rename keeps concurrent readers from seeing a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating CAS temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing CAS file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing CAS file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing CAS file: %w", err)
	}

	return hash, nil
}

// Read retrieves content by hash.
func (s *Store) Read(hash string) (string, error) {
	p, err := s.path(hash)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("reading CAS file %s: %w", hash, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decompressing CAS file %s: %w", hash, err)
	}
	return string(data), nil
}

// Clear removes every stored page.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("clearing CAS: %w", err)
	}
	return nil
}
