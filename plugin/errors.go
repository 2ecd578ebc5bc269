package plugin

import "errors"

// Sentinel errors for the plugin runtime. Structural failures are raised to
// the caller without mutating existing state; activation failures are
// recorded on the plugin record and re-raised wrapped in ErrActivationFailed.
var (
	// ErrAlreadyRegistered is returned when registering an id that exists.
	ErrAlreadyRegistered = errors.New("plugin already registered")
	// ErrNotFound is returned for an unknown plugin id or command.
	ErrNotFound = errors.New("plugin not found")
	// ErrDependencyMissing is returned when a required dependency is absent
	// or its installed version does not satisfy the declared range.
	ErrDependencyMissing = errors.New("required dependency missing")
	// ErrActivationFailed wraps an error returned by a plugin's Activate hook.
	ErrActivationFailed = errors.New("plugin activation failed")
	// ErrPluginNotEnabled is returned when a command is invoked while its
	// owning plugin is not enabled.
	ErrPluginNotEnabled = errors.New("plugin not enabled")
)
