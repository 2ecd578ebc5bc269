package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cardwise/cardflow/config"
	"github.com/cardwise/cardflow/event"
	"github.com/cardwise/cardflow/internal/metrics"
	"github.com/cardwise/cardflow/plugin/version"
)

// PlatformVersion is the version string exposed to plugin contexts when no
// override is configured.
const PlatformVersion = "1.4.0"

// Manager is the lifecycle controller and public entry point of the plugin
// runtime. It registers and unregisters plugins, enables them with cascading
// required dependencies, disables them with atomic teardown of their
// registrations, and dispatches registered commands.
//
// Lifecycle transitions are serialized: one register/enable/disable/unregister
// sequence runs at a time, and concurrent Enable calls for the same id are
// coalesced into a single activation. Plugin hooks must not call back into
// lifecycle operations; bus observers may, because notifications are
// published after the lifecycle lock is released.
type Manager struct {
	registry        *Registry
	bus             event.Bus
	logger          *zap.Logger
	store           config.Store
	metrics         *metrics.Collector
	platformVersion string

	// Metrics construction is deferred to NewManager so the collector sees
	// the final logger regardless of option order.
	metricsNamespace string
	metricsReg       prometheus.Registerer
	metricsEnabled   bool

	// mu serializes lifecycle transitions; enableGroup coalesces concurrent
	// Enable calls per plugin id.
	mu          sync.Mutex
	enableGroup singleflight.Group
}

// notification is a bus emission deferred until m.mu is released, so
// observers may call back into lifecycle operations without deadlocking.
type notification struct {
	topic   string
	payload any
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the zap logger. A nil logger is replaced with a no-op.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBus sets the event bus used for lifecycle notifications and
// plugin-scoped context events.
func WithBus(bus event.Bus) Option {
	return func(m *Manager) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// WithConfigStore sets the optional store used to seed and record plugin
// configuration defaults.
func WithConfigStore(store config.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithMetrics enables prometheus instrumentation under the given namespace,
// registered against reg. A nil registerer creates unregistered metrics.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.metricsNamespace = namespace
		m.metricsReg = reg
		m.metricsEnabled = true
	}
}

// WithPlatformVersion overrides the platform version string exposed to
// plugin contexts.
func WithPlatformVersion(v string) Option {
	return func(m *Manager) { m.platformVersion = v }
}

// NewManager creates a Manager. Without options it logs nowhere and
// publishes on a private in-memory bus.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry:        NewRegistry(),
		logger:          zap.NewNop(),
		platformVersion: PlatformVersion,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "plugin_manager"))
	if m.bus == nil {
		m.bus = event.NewMemoryBus(m.logger)
	}
	if m.metricsEnabled {
		m.metrics = metrics.NewCollector(m.metricsNamespace, m.metricsReg, m.logger)
	}
	return m
}

// publish emits notifications collected during a locked section. Must be
// called without holding m.mu.
func (m *Manager) publish(pending []notification) {
	for _, n := range pending {
		m.bus.Emit(n.topic, n.payload)
	}
}

// Registry returns the underlying Registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Register creates a record for the registration in StateInstalled. No
// activation happens. Registering a duplicate id fails without mutating the
// existing record.
func (m *Manager) Register(reg Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("registration id must not be empty")
	}
	if reg.Hooks == nil {
		return fmt.Errorf("registration %q has no activation hook", reg.ID)
	}

	m.mu.Lock()
	if err := m.registry.Add(reg); err != nil {
		m.mu.Unlock()
		return err
	}
	m.seedConfig(reg)
	m.mu.Unlock()

	m.metrics.RecordRegistration("registered")
	m.logger.Info("plugin registered",
		zap.String("plugin", reg.ID),
		zap.String("version", reg.Metadata.Version))
	m.bus.Emit(TopicRegistered, RegisteredEvent{ID: reg.ID, Metadata: reg.Metadata})
	return nil
}

// seedConfig reconciles registration defaults with the optional config
// store: stored values win over registration defaults, and defaults absent
// from the store are recorded there.
func (m *Manager) seedConfig(reg Registration) {
	if m.store == nil {
		return
	}
	overrides := make(map[string]any)
	for k, v := range reg.DefaultConfig {
		key := "plugins." + reg.ID + "." + k
		if stored, ok := m.store.Get(key); ok {
			overrides[k] = stored
			continue
		}
		m.store.Set(key, v)
	}
	if len(overrides) > 0 {
		_ = m.registry.mergeConfig(reg.ID, overrides)
	}
}

// Unregister removes the plugin, disabling it first when enabled.
// Deactivation failures are logged and never block removal. Unregistering an
// absent id is a no-op.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.registry.StateOf(id); !ok {
		m.mu.Unlock()
		return nil
	}
	pending := m.disableLocked(ctx, id)
	m.registry.Remove(id)
	m.mu.Unlock()

	m.publish(pending)
	m.metrics.RecordRegistration("unregistered")
	m.logger.Info("plugin unregistered", zap.String("plugin", id))
	m.bus.Emit(TopicUnregistered, UnregisteredEvent{ID: id})
	return nil
}

// Enable activates the plugin, first cascading over its declared
// dependencies depth-first so every required dependency completes activation
// before the plugin's own hook runs. A missing or version-incompatible
// required dependency fails before any side effect, leaving the plugin in
// its prior state. An activation hook failure moves the plugin to StateError
// and is returned wrapped in ErrActivationFailed.
func (m *Manager) Enable(ctx context.Context, id string) error {
	_, err, _ := m.enableGroup.Do(id, func() (any, error) {
		var pending []notification
		m.mu.Lock()
		err := m.enableLocked(ctx, id, make(map[string]bool), &pending)
		m.mu.Unlock()
		// Dependencies that activated before a later failure stay enabled,
		// so their notifications go out even on error.
		m.publish(pending)
		return nil, err
	})
	return err
}

func (m *Manager) enableLocked(ctx context.Context, id string, visiting map[string]bool, pending *[]notification) error {
	state, ok := m.registry.StateOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if state == StateEnabled {
		return nil
	}
	if visiting[id] {
		// Cyclic runtime dependency declaration: the id is already being
		// enabled further up this chain. Activation order inside a declared
		// cycle is undefined; do not recurse into it again.
		m.logger.Warn("cyclic dependency declaration", zap.String("plugin", id))
		return nil
	}
	// Gray set: ids stay in visiting only while their own enable is in
	// progress. A dependency that failed earlier in the cascade is re-entered
	// and fails again, so a dependent that requires it never comes up.
	visiting[id] = true
	defer delete(visiting, id)

	meta, _ := m.registry.Metadata(id)

	// Structural validation before any side effect: a missing or
	// version-incompatible required dependency leaves the plugin untouched.
	var cascade []Dependency
	for _, dep := range meta.Dependencies {
		depMeta, present := m.registry.Metadata(dep.ID)
		if !present {
			if dep.Optional {
				continue
			}
			return fmt.Errorf("%w: plugin %q requires %q", ErrDependencyMissing, id, dep.ID)
		}
		if dep.VersionRange != "" {
			compatible, err := version.IsCompatible(depMeta.Version, dep.VersionRange)
			if err != nil || !compatible {
				if dep.Optional {
					continue
				}
				if err != nil {
					return fmt.Errorf("%w: plugin %q dependency %q: %w",
						ErrDependencyMissing, id, dep.ID, err)
				}
				return fmt.Errorf("%w: plugin %q requires %q version %s, installed %s",
					ErrDependencyMissing, id, dep.ID, dep.VersionRange, depMeta.Version)
			}
		}
		cascade = append(cascade, dep)
	}

	// Cascade depth-first: dependencies activate strictly before their
	// dependent. A failed optional dependency is logged and skipped; a
	// failed required dependency fails the whole chain, leaving already
	// activated dependencies enabled.
	for _, dep := range cascade {
		if err := m.enableLocked(ctx, dep.ID, visiting, pending); err != nil {
			if dep.Optional {
				m.logger.Warn("optional dependency failed to enable",
					zap.String("plugin", id),
					zap.String("dependency", dep.ID),
					zap.Error(err))
				continue
			}
			return err
		}
	}

	hooks, _ := m.registry.hooksFor(id)
	pc := m.newContext(id)

	start := time.Now()
	err := safeActivate(ctx, hooks, pc)
	m.metrics.RecordActivation(id, time.Since(start), err)

	if err != nil {
		// Leave the system consistent: nothing the failed activation
		// registered survives.
		m.registry.RemoveOwned(id)
		wrapped := fmt.Errorf("plugin %q: %w: %w", id, ErrActivationFailed, err)
		m.registry.setState(id, StateError, wrapped)
		m.logger.Error("plugin activation failed",
			zap.String("plugin", id),
			zap.Error(err))
		return wrapped
	}

	m.registry.setState(id, StateEnabled, nil)
	m.metrics.RecordLifecycleOp(id, "enable")
	m.logger.Info("plugin enabled", zap.String("plugin", id))
	*pending = append(*pending, notification{TopicEnabled, EnabledEvent{ID: id}})
	return nil
}

// newContext builds the capability context handed to an activation hook.
func (m *Manager) newContext(id string) *Context {
	return &Context{
		pluginID:        id,
		platformVersion: m.platformVersion,
		config:          m.registry.configSnapshot(id),
		logger:          m.logger.With(zap.String("plugin", id)),
		registry:        m.registry,
		bus:             m.bus,
	}
}

// Disable deactivates the plugin and removes every command and renderer it
// owns. Deactivation hook failures are logged, never propagated; disable
// always completes. Disabling an absent or non-enabled plugin is a no-op.
func (m *Manager) Disable(ctx context.Context, id string) error {
	m.mu.Lock()
	pending := m.disableLocked(ctx, id)
	m.mu.Unlock()
	m.publish(pending)
	return nil
}

func (m *Manager) disableLocked(ctx context.Context, id string) []notification {
	state, ok := m.registry.StateOf(id)
	if !ok || state != StateEnabled {
		return nil
	}

	hooks, _ := m.registry.hooksFor(id)
	if d, ok := hooks.(Deactivator); ok {
		if err := safeDeactivate(ctx, d); err != nil {
			m.logger.Warn("plugin deactivation failed",
				zap.String("plugin", id),
				zap.Error(err))
		}
	}

	m.registry.RemoveOwned(id)
	m.registry.setState(id, StateDisabled, nil)
	m.metrics.RecordLifecycleOp(id, "disable")
	m.logger.Info("plugin disabled", zap.String("plugin", id))
	return []notification{{TopicDisabled, DisabledEvent{ID: id}}}
}

// ExecuteCommand invokes a registered command. The qualified name splits on
// the first ':' into owner id and command name. Unknown commands fail with
// ErrNotFound; commands whose owner is not currently enabled fail with
// ErrPluginNotEnabled.
func (m *Manager) ExecuteCommand(ctx context.Context, qualified string, args ...any) (any, error) {
	if _, _, ok := strings.Cut(qualified, ":"); !ok {
		return nil, fmt.Errorf("%w: command %q is not qualified", ErrNotFound, qualified)
	}

	owner, handler, ok := m.registry.Command(qualified)
	if !ok {
		return nil, fmt.Errorf("%w: command %q", ErrNotFound, qualified)
	}
	if !m.registry.IsEnabled(owner) {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotEnabled, owner)
	}

	result, err := safeInvoke(ctx, handler, args)
	m.metrics.RecordCommand(owner, qualified, err)
	return result, err
}

// GetRenderer returns the renderer definition registered for cardType.
func (m *Manager) GetRenderer(cardType string) (RendererDefinition, bool) {
	return m.registry.Renderer(cardType)
}

// UpdateConfig shallow-merges patch into the plugin's stored config and
// publishes a config:updated notification carrying the patch.
func (m *Manager) UpdateConfig(id string, patch map[string]any) error {
	m.mu.Lock()
	if err := m.registry.mergeConfig(id, patch); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.store != nil {
		for k, v := range patch {
			m.store.Set("plugins."+id+"."+k, v)
		}
	}
	m.mu.Unlock()

	applied := make(map[string]any, len(patch))
	for k, v := range patch {
		applied[k] = v
	}
	m.bus.Emit(TopicConfigUpdated, ConfigUpdatedEvent{ID: id, Config: applied})
	return nil
}

// --- accessors ---

// Get returns a snapshot of the record for id.
func (m *Manager) Get(id string) (Record, bool) { return m.registry.Get(id) }

// GetMetadata returns the metadata for id.
func (m *Manager) GetMetadata(id string) (Metadata, bool) { return m.registry.Metadata(id) }

// GetState returns the lifecycle state for id.
func (m *Manager) GetState(id string) (State, bool) { return m.registry.StateOf(id) }

// IsEnabled reports whether id is currently enabled.
func (m *Manager) IsEnabled(id string) bool { return m.registry.IsEnabled(id) }

// Count returns the number of registered plugins.
func (m *Manager) Count() int { return m.registry.Count() }

// EnabledCount returns the number of enabled plugins.
func (m *Manager) EnabledCount() int { return m.registry.EnabledCount() }

// GetCommands returns all registered qualified command names, sorted.
func (m *Manager) GetCommands() []string { return m.registry.Commands() }

// GetRendererTypes returns all card types with a registered renderer, sorted.
func (m *Manager) GetRendererTypes() []string { return m.registry.RendererTypes() }

// List returns snapshots of records matching the optional filter.
func (m *Manager) List(filter *Filter) []Record { return m.registry.List(filter) }

// Manifests derives the resolver-facing manifest set from all registered
// plugins, for callers that pre-validate the whole graph before cascading.
func (m *Manager) Manifests() map[string]*Manifest { return m.registry.Manifests() }

// --- hook invocation ---

// safeActivate runs the activation hook, converting a panic into an error.
func safeActivate(ctx context.Context, hooks Lifecycle, pc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("activation panicked: %v", r)
		}
	}()
	return hooks.Activate(ctx, pc)
}

// safeDeactivate runs the deactivation hook, converting a panic into an error.
func safeDeactivate(ctx context.Context, d Deactivator) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deactivation panicked: %v", r)
		}
	}()
	return d.Deactivate(ctx)
}

// safeInvoke runs a command handler, converting a panic into an error.
func safeInvoke(ctx context.Context, handler CommandHandler, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("command panicked: %v", r)
		}
	}()
	return handler(ctx, args...)
}
