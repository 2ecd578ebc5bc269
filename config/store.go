// Package config provides the optional key-value store the plugin runtime
// uses to seed and record plugin configuration defaults. The runtime is
// correct without it; callers that want defaults to survive outside the
// process wire in their own Store implementation.
package config

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is the narrow contract the plugin runtime consumes.
type Store interface {
	// Get returns the value stored under key, if any.
	Get(key string) (any, bool)
	// Set stores value under key, replacing any previous value.
	Set(key string, value any)
	// Snapshot returns a copy of the full key space.
	Snapshot() map[string]any
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// Compile-time interface compliance check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Snapshot returns a copy of all stored values.
func (s *MemoryStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// LoadYAML seeds the store from a YAML document. Nested mappings are
// flattened into dot-separated keys, so
//
//	plugins:
//	  markdown-cards:
//	    theme: dark
//
// becomes Set("plugins.markdown-cards.theme", "dark"). Existing keys are
// overwritten.
func (s *MemoryStore) LoadYAML(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	flatten("", doc, s.values)
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
