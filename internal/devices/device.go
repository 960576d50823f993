package devices

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

// Device bundles the executor, parser and websocket of one speaker.
type Device struct {
	config   config.DeviceConfig
	exec     *soundtouch.Executor
	parser   *soundtouch.ResponseParser
	conn     Connection
	presets  *soundtouch.PresetStore
	recorder Recorder
	logger   zerolog.Logger

	mu          sync.Mutex
	connectedAt time.Time
	lastError   string
}

// ID returns the device MAC address.
func (d *Device) ID() string { return d.config.ID }

// Executor returns the command executor.
func (d *Device) Executor() *soundtouch.Executor { return d.exec }

// Presets returns the device preset store.
func (d *Device) Presets() *soundtouch.PresetStore { return d.presets }

// Connected reports whether the websocket is open.
func (d *Device) Connected() bool { return d.conn.IsConnected() }

// ConnectionInfo returns when the current connection opened and the last
// close reason.
func (d *Device) ConnectionInfo() (time.Time, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectedAt, d.lastError
}

func (d *Device) onOpen() {
	d.mu.Lock()
	d.connectedAt = time.Now()
	d.lastError = ""
	d.mu.Unlock()

	d.exec.SetOnline(true)
	d.exec.RequestInfo()
	d.recorder.Record(audit.WriteEventInput{
		Type:     audit.EventDeviceOnline,
		DeviceID: d.ID(),
		Message:  "Device connected",
		Payload:  map[string]any{"host": d.config.Host},
	})
}

func (d *Device) onMessage(data []byte) {
	d.parser.HandleMessage(data)
}

func (d *Device) onClose(err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	d.mu.Lock()
	d.connectedAt = time.Time{}
	d.lastError = reason
	d.mu.Unlock()

	d.parser.Reset()
	d.exec.SetOnline(false)
	d.recorder.Record(audit.WriteEventInput{
		Type:     audit.EventDeviceOffline,
		Level:    audit.EventLevelWarn,
		DeviceID: d.ID(),
		Message:  "Device disconnected",
		Payload:  map[string]any{"reason": reason},
	})
}
