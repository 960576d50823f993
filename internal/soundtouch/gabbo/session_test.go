package gabbo

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	server *httptest.Server
	conns  chan *websocket.Conn
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	device := &fakeDevice{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	device.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		device.conns <- conn
	}))
	t.Cleanup(device.server.Close)
	return device
}

func (d *fakeDevice) config(t *testing.T) Config {
	t.Helper()
	host, portText, err := net.SplitHostPort(d.server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)
	return Config{
		Host:         host,
		Port:         port,
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 50 * time.Millisecond,
	}
}

func (d *fakeDevice) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-d.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("session did not connect")
		return nil
	}
}

func startSession(t *testing.T, session *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSession_URL(t *testing.T) {
	session := NewSession(Config{Host: "10.0.0.5"}, Handlers{}, zerolog.Nop())
	require.Equal(t, "ws://10.0.0.5:8080/", session.URL())
}

func TestSession_SendWithoutConnection(t *testing.T) {
	session := NewSession(Config{Host: "10.0.0.5"}, Handlers{}, zerolog.Nop())
	require.ErrorIs(t, session.SendText("<msg/>"), ErrNotConnected)
	require.False(t, session.IsConnected())
	session.HandleError(errors.New("boom"))
}

func TestSession_ExchangesTextFrames(t *testing.T) {
	device := newFakeDevice(t)
	opened := make(chan struct{}, 1)
	received := make(chan string, 1)
	session := NewSession(device.config(t), Handlers{
		OnOpen:    func() { opened <- struct{}{} },
		OnMessage: func(data []byte) { received <- string(data) },
	}, zerolog.Nop())
	startSession(t, session)

	conn := device.accept(t)
	require.Equal(t, Subprotocol, conn.Subprotocol())
	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("OnOpen not called")
	}
	require.Eventually(t, session.IsConnected, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, session.SendText(`<msg><header url="info"/></msg>`))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `<msg><header url="info"/></msg>`, string(data))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("binary")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`<updates/>`)))
	select {
	case msg := <-received:
		require.Equal(t, `<updates/>`, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("OnMessage not called")
	}
}

func TestSession_ReconnectsAfterClose(t *testing.T) {
	device := newFakeDevice(t)
	closed := make(chan error, 4)
	session := NewSession(device.config(t), Handlers{
		OnClose: func(err error) { closed <- err },
	}, zerolog.Nop())
	startSession(t, session)

	first := device.accept(t)
	require.NoError(t, first.Close())

	select {
	case err := <-closed:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}
	device.accept(t)
}

func TestSession_HandleErrorDropsConnection(t *testing.T) {
	device := newFakeDevice(t)
	closed := make(chan error, 4)
	session := NewSession(device.config(t), Handlers{
		OnClose: func(err error) { closed <- err },
	}, zerolog.Nop())
	startSession(t, session)

	device.accept(t)
	require.Eventually(t, session.IsConnected, 5*time.Second, 10*time.Millisecond)

	session.HandleError(errors.New("write failed"))
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}
	device.accept(t)
}

func TestSession_RunStopsOnCancel(t *testing.T) {
	device := newFakeDevice(t)
	session := NewSession(device.config(t), Handlers{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	device.accept(t)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	require.False(t, session.IsConnected())
}
