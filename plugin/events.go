package plugin

// Lifecycle notification topics published on the event bus.
const (
	TopicRegistered    = "plugin:registered"
	TopicUnregistered  = "plugin:unregistered"
	TopicEnabled       = "plugin:enabled"
	TopicDisabled      = "plugin:disabled"
	TopicConfigUpdated = "plugin:config:updated"
)

// RegisteredEvent is the payload of TopicRegistered.
type RegisteredEvent struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

// UnregisteredEvent is the payload of TopicUnregistered.
type UnregisteredEvent struct {
	ID string `json:"id"`
}

// EnabledEvent is the payload of TopicEnabled.
type EnabledEvent struct {
	ID string `json:"id"`
}

// DisabledEvent is the payload of TopicDisabled.
type DisabledEvent struct {
	ID string `json:"id"`
}

// ConfigUpdatedEvent is the payload of TopicConfigUpdated. Config carries the
// applied patch, not the full merged configuration.
type ConfigUpdatedEvent struct {
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}
