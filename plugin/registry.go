package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry owns the mapping from plugin id to runtime record, plus the shared
// command and renderer registries. Each shared entry carries its owning
// plugin id so a plugin's registrations can be torn down in O(owned keys)
// when it is disabled or unregistered.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*Record
	commands  map[string]*commandEntry
	renderers map[string]*rendererEntry
}

type commandEntry struct {
	owner   string
	handler CommandHandler
}

type rendererEntry struct {
	owner string
	def   RendererDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		records:   make(map[string]*Record),
		commands:  make(map[string]*commandEntry),
		renderers: make(map[string]*rendererEntry),
	}
}

// Add creates a record for the registration in StateInstalled. Registering a
// duplicate id fails without touching the existing record.
func (r *Registry) Add(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[reg.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, reg.ID)
	}

	cfg := make(map[string]any, len(reg.DefaultConfig))
	for k, v := range reg.DefaultConfig {
		cfg[k] = v
	}

	r.records[reg.ID] = &Record{
		ID:        reg.ID,
		Metadata:  reg.Metadata,
		Config:    cfg,
		State:     StateInstalled,
		commands:  make(map[string]struct{}),
		renderers: make(map[string]struct{}),
		hooks:     reg.Hooks,
	}
	return nil
}

// hooksFor returns the live lifecycle hooks for id.
func (r *Registry) hooksFor(id string) (Lifecycle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return rec.hooks, true
}

// Remove deletes the record for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// Get returns a snapshot of the record for id. The registry remains the sole
// owner of the live record; mutating the snapshot has no effect.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return r.snapshot(rec), true
}

// Metadata returns the metadata for id.
func (r *Registry) Metadata(id string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Metadata{}, false
	}
	return rec.Metadata, true
}

// StateOf returns the lifecycle state for id.
func (r *Registry) StateOf(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return "", false
	}
	return rec.State, true
}

// IsEnabled reports whether id is currently enabled.
func (r *Registry) IsEnabled(id string) bool {
	state, ok := r.StateOf(id)
	return ok && state == StateEnabled
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// EnabledCount returns the number of enabled plugins.
func (r *Registry) EnabledCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.records {
		if rec.State == StateEnabled {
			count++
		}
	}
	return count
}

// Filter narrows List results. Zero fields match everything; Keyword matches
// case-insensitively against name or description substrings.
type Filter struct {
	State   State
	Keyword string
	Author  string
}

// List returns snapshots of records matching the filter, sorted by id.
func (r *Registry) List(filter *Filter) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter != nil && !matches(rec, filter) {
			continue
		}
		result = append(result, r.snapshot(rec))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func matches(rec *Record, filter *Filter) bool {
	if filter.State != "" && rec.State != filter.State {
		return false
	}
	if filter.Author != "" && rec.Metadata.Author != filter.Author {
		return false
	}
	if filter.Keyword != "" {
		kw := strings.ToLower(filter.Keyword)
		name := strings.ToLower(rec.Metadata.Name)
		desc := strings.ToLower(rec.Metadata.Description)
		if !strings.Contains(name, kw) && !strings.Contains(desc, kw) {
			return false
		}
	}
	return true
}

// Manifests derives the resolver-facing manifest set from all registered
// plugins' metadata.
func (r *Registry) Manifests() map[string]*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Manifest, len(r.records))
	for id, rec := range r.records {
		out[id] = ManifestFromMetadata(rec.Metadata)
	}
	return out
}

// --- shared command / renderer registries ---

// AddCommand binds a qualified command name to its handler under owner. A
// command name belongs to at most one plugin at a time.
func (r *Registry) AddCommand(owner, qualified string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, owner)
	}
	if existing, exists := r.commands[qualified]; exists {
		return fmt.Errorf("%w: command %q already registered by %q",
			ErrAlreadyRegistered, qualified, existing.owner)
	}

	r.commands[qualified] = &commandEntry{owner: owner, handler: handler}
	rec.commands[qualified] = struct{}{}
	return nil
}

// AddRenderer binds a card type to a renderer definition under owner.
func (r *Registry) AddRenderer(owner, cardType string, def RendererDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, owner)
	}
	if existing, exists := r.renderers[cardType]; exists {
		return fmt.Errorf("%w: renderer for %q already registered by %q",
			ErrAlreadyRegistered, cardType, existing.owner)
	}

	r.renderers[cardType] = &rendererEntry{owner: owner, def: def}
	rec.renderers[cardType] = struct{}{}
	return nil
}

// Command returns the owner and handler for a qualified command name.
func (r *Registry) Command(qualified string) (owner string, handler CommandHandler, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.commands[qualified]
	if !ok {
		return "", nil, false
	}
	return entry.owner, entry.handler, true
}

// Renderer returns the renderer definition registered for cardType.
func (r *Registry) Renderer(cardType string) (RendererDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.renderers[cardType]
	if !ok {
		return RendererDefinition{}, false
	}
	return entry.def, true
}

// Commands returns all registered qualified command names, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RendererTypes returns all card types with a registered renderer, sorted.
func (r *Registry) RendererTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.renderers))
	for cardType := range r.renderers {
		out = append(out, cardType)
	}
	sort.Strings(out)
	return out
}

// RemoveOwned removes every command and renderer owned by id and clears the
// record's ownership sets.
func (r *Registry) RemoveOwned(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return
	}
	for name := range rec.commands {
		delete(r.commands, name)
	}
	for cardType := range rec.renderers {
		delete(r.renderers, cardType)
	}
	rec.commands = make(map[string]struct{})
	rec.renderers = make(map[string]struct{})
}

// --- record mutation (runtime-internal) ---

// setState transitions the record for id, recording err alongside StateError.
func (r *Registry) setState(id string, state State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return
	}
	rec.State = state
	rec.Err = err
}

// mergeConfig shallow-merges patch into the stored config: patch keys
// override, other keys are untouched.
func (r *Registry) mergeConfig(id string, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for k, v := range patch {
		rec.Config[k] = v
	}
	return nil
}

// configSnapshot returns a copy of the stored config for id.
func (r *Registry) configSnapshot(id string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(rec.Config))
	for k, v := range rec.Config {
		out[k] = v
	}
	return out
}

// snapshot copies a record for external consumption. Caller holds r.mu.
func (r *Registry) snapshot(rec *Record) Record {
	out := Record{
		ID:        rec.ID,
		Metadata:  rec.Metadata,
		State:     rec.State,
		Err:       rec.Err,
		Config:    make(map[string]any, len(rec.Config)),
		commands:  make(map[string]struct{}, len(rec.commands)),
		renderers: make(map[string]struct{}, len(rec.renderers)),
	}
	for k, v := range rec.Config {
		out.Config[k] = v
	}
	for k := range rec.commands {
		out.commands[k] = struct{}{}
	}
	for k := range rec.renderers {
		out.renderers[k] = struct{}{}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
