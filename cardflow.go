// Package cardflow provides a top-level convenience entry point for the
// Cardflow plugin runtime.
//
// Usage:
//
//	import "github.com/cardwise/cardflow"
//
//	mgr := cardflow.New(cardflow.WithLogger(logger), cardflow.WithBus(bus))
//	mgr.Register(reg)
//	mgr.Enable(ctx, "my-plugin")
//
// This is a thin wrapper around [plugin.NewManager]; both produce identical
// results. Use this package when you prefer the shorter import path.
package cardflow

import (
	"github.com/cardwise/cardflow/plugin"
)

// Version is the platform version exposed to plugin activation contexts.
const Version = plugin.PlatformVersion

// StandardsVersion is the content-card standards version this runtime
// implements. Plugins declare the standards version they were built against
// in their metadata.
const StandardsVersion = "2.1"

// Option configures the manager created by [New].
type Option = plugin.Option

// New creates a [plugin.Manager] with the given options.
func New(opts ...Option) *plugin.Manager {
	return plugin.NewManager(opts...)
}

// Re-export manager options so callers never need to import plugin/ for setup.

// WithLogger sets a custom zap logger.
var WithLogger = plugin.WithLogger

// WithBus sets the event bus used for lifecycle notifications and
// plugin-scoped events.
var WithBus = plugin.WithBus

// WithConfigStore sets the optional key-value store used to seed and record
// plugin configuration defaults.
var WithConfigStore = plugin.WithConfigStore

// WithMetrics sets the metrics collector for lifecycle instrumentation.
var WithMetrics = plugin.WithMetrics

// WithPlatformVersion overrides the platform version string exposed to
// plugin contexts.
var WithPlatformVersion = plugin.WithPlatformVersion
