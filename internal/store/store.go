package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jcdickinson/refdoc/internal/autodoc"
	"github.com/klauspost/compress/zstd"
)

// IndexFile is the name of the index at the root of a descriptor directory.
const IndexFile = "index.json"

// Index lists every descriptor locator in generation order.
type Index struct {
	Version string   `json:"version"`
	Items   []string `json:"items"`
}

// Dir is a descriptor directory laid out as index.json plus one JSON file
// per locator. Any file may instead be stored zstd-compressed with a .zst
// suffix. The index is read once by Open and never changes afterwards.
type Dir struct {
	root  string
	index Index

	mu    sync.RWMutex
	items map[string]*autodoc.ItemInfo
}

// Open reads the index of the descriptor directory at root.
func Open(root string) (*Dir, error) {
	var index Index
	if err := readJSON(filepath.Join(root, IndexFile), &index); err != nil {
		return nil, fmt.Errorf("reading descriptor index: %w", err)
	}
	for _, loc := range index.Items {
		if !strings.HasSuffix(loc, ".json") || filepath.IsAbs(loc) || strings.Contains(loc, "..") {
			return nil, fmt.Errorf("invalid locator %q in %s", loc, IndexFile)
		}
	}
	return &Dir{
		root:  root,
		index: index,
		items: make(map[string]*autodoc.ItemInfo),
	}, nil
}

func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) Version() string {
	return d.index.Version
}

// Locators returns the index entries in order.
func (d *Dir) Locators() []string {
	return append([]string(nil), d.index.Items...)
}

func (d *Dir) Lookup(name string) (string, bool) {
	return autodoc.MatchLocator(d.index.Items, name)
}

// Load reads and decodes the descriptor at locator. Decoded descriptors are
// kept for the lifetime of the Dir and must not be modified by callers.
func (d *Dir) Load(locator string) (*autodoc.ItemInfo, error) {
	d.mu.RLock()
	info, ok := d.items[locator]
	d.mu.RUnlock()
	if ok {
		return info, nil
	}

	info = &autodoc.ItemInfo{}
	if err := readJSON(filepath.Join(d.root, filepath.FromSlash(locator)), info); err != nil {
		return nil, fmt.Errorf("loading descriptor %s: %w", locator, err)
	}

	d.mu.Lock()
	if cached, ok := d.items[locator]; ok {
		info = cached
	} else {
		d.items[locator] = info
	}
	d.mu.Unlock()
	return info, nil
}

// readJSON decodes path, falling back to path+".zst".
func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return readCompressedJSON(path+".zst", v)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return decode(f, v)
}

func readCompressedJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()
	return decode(r, v)
}

func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}

// Compress rewrites every descriptor and the index as .zst files, removing
// the plain JSON originals.
func Compress(root string) (int, error) {
	d, err := Open(root)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, name := range append([]string{IndexFile}, d.index.Items...) {
		path := filepath.Join(root, filepath.FromSlash(name))
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("reading %s: %w", name, err)
		}
		if err := writeCompressed(path+".zst", data); err != nil {
			return n, err
		}
		if err := os.Remove(path); err != nil {
			return n, fmt.Errorf("removing %s: %w", name, err)
		}
		n++
	}
	return n, nil
}

func writeCompressed(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return nil
}
