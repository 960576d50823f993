package audit

// EventType represents the type of audit event.
type EventType string

const (
	EventDeviceCommand       EventType = "DEVICE_COMMAND"
	EventDeviceCommandFailed EventType = "DEVICE_COMMAND_FAILED"
	EventDeviceOnline        EventType = "DEVICE_ONLINE"
	EventDeviceOffline       EventType = "DEVICE_OFFLINE"
	EventPresetStored        EventType = "PRESET_STORED"
	EventZoneChanged         EventType = "ZONE_CHANGED"
	EventSystemStartup       EventType = "SYSTEM_STARTUP"
	EventSystemShutdown      EventType = "SYSTEM_SHUTDOWN"
	EventSystemError         EventType = "SYSTEM_ERROR"
)

var validEventTypes = map[EventType]struct{}{
	EventDeviceCommand:       {},
	EventDeviceCommandFailed: {},
	EventDeviceOnline:        {},
	EventDeviceOffline:       {},
	EventPresetStored:        {},
	EventZoneChanged:         {},
	EventSystemStartup:       {},
	EventSystemShutdown:      {},
	EventSystemError:         {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := validEventTypes[t]
	return ok
}

// EventLevel represents the severity level of an audit event.
type EventLevel string

const (
	EventLevelDebug EventLevel = "DEBUG"
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

var validEventLevels = map[string]EventLevel{
	"DEBUG": EventLevelDebug,
	"INFO":  EventLevelInfo,
	"WARN":  EventLevelWarn,
	"ERROR": EventLevelError,
}

// ParseLevel maps a query value to a level.
func ParseLevel(value string) (EventLevel, bool) {
	level, ok := validEventLevels[value]
	return level, ok
}
