package plugin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cardwise/cardflow/event"
)

// CommandHandler is a plugin-supplied command implementation.
type CommandHandler func(ctx context.Context, args ...any) (any, error)

// RenderFunc turns a card payload into rendered output. The runtime never
// calls it; it only hands the definition to the rendering collaborator.
type RenderFunc func(ctx context.Context, card any) (any, error)

// RendererDefinition is a plugin-supplied renderer for one or more card types.
type RendererDefinition struct {
	Name      string
	CardTypes []string
	Render    RenderFunc
}

// Context is the least-privilege capability surface handed to a plugin's
// Activate hook. It scopes logging, events, and registrations to the plugin's
// own identity. The Manager does not retain it past the activation call; the
// registrations it produces persist until the plugin is disabled or
// unregistered.
type Context struct {
	pluginID        string
	platformVersion string
	config          map[string]any
	logger          *zap.Logger
	registry        *Registry
	bus             event.Bus
}

// PluginID returns the id of the plugin this context belongs to.
func (c *Context) PluginID() string { return c.pluginID }

// PlatformVersion returns the platform/SDK version string.
func (c *Context) PlatformVersion() string { return c.platformVersion }

// Config returns the plugin's config snapshot taken when the context was
// built.
func (c *Context) Config() map[string]any { return c.config }

// Log writes to a logger scoped with the plugin id.
func (c *Context) Log(msg string, fields ...zap.Field) {
	c.logger.Info(msg, fields...)
}

// RegisterCommand records handler under the qualified name "{pluginID}:{name}"
// in the shared command registry and the plugin's ownership set.
func (c *Context) RegisterCommand(name string, handler CommandHandler) error {
	if name == "" {
		return fmt.Errorf("command name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("command handler must not be nil")
	}
	return c.registry.AddCommand(c.pluginID, c.pluginID+":"+name, handler)
}

// RegisterRenderer records each of the definition's card types in the shared
// renderer registry and the plugin's ownership set.
func (c *Context) RegisterRenderer(def RendererDefinition) error {
	if len(def.CardTypes) == 0 {
		return fmt.Errorf("renderer %q declares no card types", def.Name)
	}
	for _, cardType := range def.CardTypes {
		if err := c.registry.AddRenderer(c.pluginID, cardType, def); err != nil {
			return err
		}
	}
	return nil
}

// On subscribes to the plugin's namespaced topic for event.
func (c *Context) On(evt string, handler event.Handler) (unsubscribe func()) {
	return c.bus.On(c.topic(evt), handler)
}

// Emit publishes synchronously to the plugin's namespaced topic for event.
func (c *Context) Emit(evt string, data any) {
	c.bus.Emit(c.topic(evt), data)
}

func (c *Context) topic(evt string) string {
	return fmt.Sprintf("plugin:%s:%s", c.pluginID, evt)
}
