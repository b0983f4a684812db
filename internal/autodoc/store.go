package autodoc

import (
	"fmt"
	"os"
	"strings"
)

// Store is the read-only descriptor index consulted while rendering.
type Store interface {
	// Lookup returns the locator of the descriptor named name, matched by
	// suffix against the index.
	Lookup(name string) (locator string, ok bool)
	// Load returns the descriptor stored at locator.
	Load(locator string) (*ItemInfo, error)
}

// MatchLocator returns the first locator that names the type: either
// "<dir>/<name>.json" or "<name>.json".
func MatchLocator(locators []string, name string) (string, bool) {
	file := name + ".json"
	for _, loc := range locators {
		if loc == file || strings.HasSuffix(loc, "/"+file) {
			return loc, true
		}
	}
	return "", false
}

// PagePath strips the .json extension from a locator.
func PagePath(locator string) string {
	return strings.TrimSuffix(locator, ".json")
}

// MapStore is an in-memory Store. Locators keep insertion order for lookup.
type MapStore struct {
	locators []string
	items    map[string]*ItemInfo
}

func NewMapStore() *MapStore {
	return &MapStore{items: make(map[string]*ItemInfo)}
}

// Add registers info at "<package>/<name>.json" and returns that locator.
func (s *MapStore) Add(info *ItemInfo) string {
	loc := info.Name + ".json"
	if info.Package != "" {
		loc = info.Package + "/" + loc
	}
	if _, ok := s.items[loc]; !ok {
		s.locators = append(s.locators, loc)
	}
	s.items[loc] = info
	return loc
}

func (s *MapStore) Lookup(name string) (string, bool) {
	return MatchLocator(s.locators, name)
}

func (s *MapStore) Load(locator string) (*ItemInfo, error) {
	info, ok := s.items[locator]
	if !ok {
		return nil, fmt.Errorf("loading %s: %w", locator, os.ErrNotExist)
	}
	return info, nil
}

func (s *MapStore) Locators() []string {
	return append([]string(nil), s.locators...)
}
