// Package gabbo owns the websocket connection to a SoundTouch device.
package gabbo

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Subprotocol is the websocket subprotocol spoken by SoundTouch devices.
const Subprotocol = "gabbo"

// DefaultPort is the device websocket port.
const DefaultPort = 8080

var (
	// ErrNotConnected is returned when sending without an open connection.
	ErrNotConnected = errors.New("device websocket not connected")
)

// Config describes where and how to connect.
type Config struct {
	Host         string
	Port         int
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	PingInterval time.Duration
	DialTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 60 * time.Second
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c
}

// Handlers receive connection events. All are optional. OnMessage is called
// from the single read goroutine.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// Session keeps one device connection alive and reconnects with backoff.
type Session struct {
	cfg      Config
	handlers Handlers
	logger   zerolog.Logger
	dialer   *websocket.Dialer

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewSession creates a session. Nothing is dialed until Run.
func NewSession(cfg Config, handlers Handlers, logger zerolog.Logger) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:      cfg,
		handlers: handlers,
		logger:   logger.With().Str("component", "gabbo").Str("host", cfg.Host).Logger(),
		dialer: &websocket.Dialer{
			Subprotocols:     []string{Subprotocol},
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// URL returns the websocket url of the device.
func (s *Session) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Path:   "/",
	}
	return u.String()
}

// Run connects and reads until ctx is cancelled, reconnecting after every
// failure. It returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	delay := s.cfg.ReconnectMin
	for {
		conn, err := s.dial(ctx)
		if err == nil {
			delay = s.cfg.ReconnectMin
			err = s.serve(ctx, conn)
		} else if ctx.Err() == nil {
			s.logger.Debug().Err(err).Msg("Device websocket connect failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Info().Dur("retry_in", delay).Msg("Reconnecting to device")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > s.cfg.ReconnectMax {
			delay = s.cfg.ReconnectMax
		}
	}
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.URL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve runs one connection until it fails or ctx is cancelled.
func (s *Session) serve(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info().Str("subprotocol", conn.Subprotocol()).Msg("Connected to device")
	if s.handlers.OnOpen != nil {
		s.handlers.OnOpen()
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(conn, stop)
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	err := s.readLoop(conn)
	close(stop)
	wg.Wait()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()

	if ctx.Err() != nil {
		err = ctx.Err()
	}
	s.logger.Info().Err(err).Msg("Device websocket closed")
	if s.handlers.OnClose != nil {
		s.handlers.OnClose(err)
	}
	return err
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(data)
		}
	}
}

func (s *Session) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.DialTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to send ping")
				conn.Close()
				return
			}
		case <-stop:
			return
		}
	}
}

// SendText writes one text frame.
func (s *Session) SendText(msg string) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// HandleError drops the current connection. Run reconnects afterwards.
func (s *Session) HandleError(err error) {
	s.logger.Warn().Err(err).Msg("Dropping device connection")
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}
}

// IsConnected reports whether a connection is open.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}
