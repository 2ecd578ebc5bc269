package plugin

import "context"

// State represents the lifecycle state of a plugin.
type State string

const (
	// StateInstalled means the plugin is registered but has never been
	// enabled, or a structural validation failure left it untouched.
	StateInstalled State = "installed"
	// StateEnabled means the activation hook returned successfully and no
	// deactivation has happened since.
	StateEnabled State = "enabled"
	// StateDisabled means the plugin was enabled and has been disabled.
	StateDisabled State = "disabled"
	// StateError means the last activation attempt failed.
	StateError State = "error"
)

// Lifecycle is the activation contract every plugin implements. Activate
// receives the capability context scoping the plugin's logging, events, and
// registrations to its own identity.
type Lifecycle interface {
	Activate(ctx context.Context, pc *Context) error
}

// Deactivator is the optional deactivation hook. Plugins that need teardown
// beyond the automatic removal of their commands and renderers implement it
// alongside Lifecycle.
type Deactivator interface {
	Deactivate(ctx context.Context) error
}

// ActivateFunc adapts a plain function to the Lifecycle interface.
type ActivateFunc func(ctx context.Context, pc *Context) error

// Activate implements Lifecycle.
func (f ActivateFunc) Activate(ctx context.Context, pc *Context) error {
	return f(ctx, pc)
}

// Registration is a plugin submitted to the live Manager: its metadata plus
// the actual lifecycle hooks and optional configuration defaults.
type Registration struct {
	ID            string
	Metadata      Metadata
	Hooks         Lifecycle
	DefaultConfig map[string]any
}

// Record is the runtime state of a registered plugin. The Registry is the
// sole owner; callers receive copies or read-only views, never the record
// itself.
type Record struct {
	ID       string
	Metadata Metadata
	Config   map[string]any
	State    State
	Err      error

	// Ownership sets, authoritative for teardown.
	commands  map[string]struct{}
	renderers map[string]struct{}

	// Live lifecycle hooks; not part of the exported snapshot.
	hooks Lifecycle
}

// Commands returns the command names the plugin currently owns.
func (r *Record) Commands() []string {
	return sortedKeys(r.commands)
}

// RendererTypes returns the renderer-type keys the plugin currently owns.
func (r *Record) RendererTypes() []string {
	return sortedKeys(r.renderers)
}
