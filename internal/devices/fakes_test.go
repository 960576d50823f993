package devices

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/events"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/gabbo"
)

type fakeConn struct {
	cfg      gabbo.Config
	handlers gabbo.Handlers

	mu        sync.Mutex
	connected bool
	messages  []string
}

func (c *fakeConn) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConn) SendText(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return gabbo.ErrNotConnected
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeConn) HandleError(error) {}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) open() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.handlers.OnOpen()
}

func (c *fakeConn) close(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.handlers.OnClose(err)
}

func (c *fakeConn) deliver(msg string) {
	c.handlers.OnMessage([]byte(msg))
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// sentTo reports whether any sent message addresses url.
func (c *fakeConn) sentTo(url string) bool {
	for _, msg := range c.sent() {
		if strings.Contains(msg, `url="`+url+`"`) {
			return true
		}
	}
	return false
}

type recorder struct {
	mu     sync.Mutex
	events []audit.WriteEventInput
}

func (r *recorder) Record(input audit.WriteEventInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, input)
}

func (r *recorder) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]audit.EventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func (r *recorder) last() audit.WriteEventInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type testHub struct {
	service  *Service
	cache    *events.StateCache
	recorder *recorder
	conns    map[string]*fakeConn
}

const (
	kitchenID = "A0F6FD000001"
	denID     = "A0F6FD000002"
)

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	hub := &testHub{
		cache:    events.NewStateCache(0),
		recorder: &recorder{},
		conns:    map[string]*fakeConn{},
	}
	hub.service = NewService(Options{
		PresetDir: t.TempDir(),
		WSPort:    gabbo.DefaultPort,
		Dial: func(cfg gabbo.Config, handlers gabbo.Handlers, _ zerolog.Logger) Connection {
			conn := &fakeConn{cfg: cfg, handlers: handlers}
			hub.conns[cfg.Host] = conn
			return conn
		},
	}, hub.cache, hub.recorder, zerolog.Nop())
	t.Cleanup(func() { hub.service.Close() })

	_, err := hub.service.Add(config.DeviceConfig{ID: strings.ToLower(kitchenID), Name: "Kitchen", Host: "10.0.0.11"})
	require.NoError(t, err)
	_, err = hub.service.Add(config.DeviceConfig{ID: denID, Name: "Den", Host: "10.0.0.12", Port: 8090})
	require.NoError(t, err)
	return hub
}

func (h *testHub) conn(host string) *fakeConn {
	return h.conns[host]
}

func response(deviceID, url, body string) string {
	return `<msg><header deviceID="` + deviceID + `" url="` + url + `" method="GET"><request requestID="1"><info type="new"/></request></header>` +
		`<body>` + body + `</body></msg>`
}
