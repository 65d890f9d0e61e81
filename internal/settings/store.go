// Package settings is a small string key-value store for user preferences,
// persisted as a JSON file in the data directory. Values are strings on disk;
// typed accessors parse on the way out and fall back to a default.
package settings

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/angelware-net/spectre/internal/util"
)

// Well-known preference keys.
const (
	KeyOverlayEnabled = "xsOverlayEnabled"
	KeyNotifyOnJoin   = "notifyOnJoin"
	KeyMaxCacheSize   = "maximumCacheSize"
)

// Store is a mutex-guarded key-value map with write-through persistence.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// Open loads the settings file at path, creating an empty store if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]string{}}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &s.values); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the raw value for key, or "" if unset.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores a value and writes the file immediately.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return util.WriteJSONFile(s.path, s.values)
}

// Bool parses key as a boolean; unset or unparsable values return def.
func (s *Store) Bool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(s.Get(key)))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int parses key as an integer; unset or unparsable values return def.
func (s *Store) Int(key string, def int) int {
	v := strings.TrimSpace(s.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
