package devices

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/gabbo"
)

// ErrDeviceOffline is returned for commands sent while the device websocket
// is closed.
var ErrDeviceOffline = errors.New("device is offline")

// Connection is one device websocket. *gabbo.Session satisfies it.
type Connection interface {
	soundtouch.Session
	Run(ctx context.Context) error
	IsConnected() bool
}

// Dialer creates the connection for a device. Nothing is dialed until Run.
type Dialer func(cfg gabbo.Config, handlers gabbo.Handlers, logger zerolog.Logger) Connection

func dialGabbo(cfg gabbo.Config, handlers gabbo.Handlers, logger zerolog.Logger) Connection {
	return gabbo.NewSession(cfg, handlers, logger)
}

// Recorder stores audit events. *audit.Service satisfies it.
type Recorder interface {
	Record(input audit.WriteEventInput)
}

type nopRecorder struct{}

func (nopRecorder) Record(audit.WriteEventInput) {}

// Options configures a Service.
type Options struct {
	// PresetDir holds one preset file per device. Empty keeps presets in memory.
	PresetDir    string
	WSPort       int
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Dial         Dialer
}

// CommandMeta identifies who issued a command, for the audit log.
type CommandMeta struct {
	RequestID  string
	ClientID   string
	ClientName string
}

// payload returns base with the client name added. base is not modified.
func (m CommandMeta) payload(base map[string]any) map[string]any {
	if m.ClientName == "" {
		return base
	}
	out := make(map[string]any, len(base)+1)
	for key, value := range base {
		out[key] = value
	}
	out["client_name"] = m.ClientName
	return out
}
