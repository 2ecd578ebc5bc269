// Package plugin is the core plugin runtime of the Cardflow content-card
// platform. It admits third-party extensions, validates their declared
// dependencies, and drives them through an enable/disable lifecycle while
// exposing a narrow capability surface (commands, renderers, scoped events)
// to the extension code.
//
// The Manager is the public entry point. The Registry it owns maps plugin
// ids to runtime records and tracks which plugin owns each registered
// command and renderer, so a plugin's contributions can be torn down
// atomically. Batch dependency resolution over manifests lives in the
// resolver subpackage; semantic-version comparison in the version
// subpackage.
//
// Usage:
//
//	mgr := plugin.NewManager(plugin.WithLogger(logger), plugin.WithBus(bus))
//	mgr.Register(plugin.Registration{
//	    ID:       "markdown-cards",
//	    Metadata: meta,
//	    Hooks: plugin.ActivateFunc(func(ctx context.Context, pc *plugin.Context) error {
//	        return pc.RegisterCommand("render", renderCmd)
//	    }),
//	})
//	mgr.Enable(ctx, "markdown-cards")
package plugin
