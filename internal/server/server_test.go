package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/auth"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/devices"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/gabbo"
)

type idleConn struct {
	handlers gabbo.Handlers

	mu        sync.Mutex
	connected bool
}

func (c *idleConn) Run(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.handlers.OnOpen()
	<-ctx.Done()
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return ctx.Err()
}

func (c *idleConn) SendText(string) error { return nil }

func (c *idleConn) HandleError(error) {}

func (c *idleConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		SQLiteDBPath:             filepath.Join(dir, "hub.db"),
		NodeEnv:                  "development",
		AllowTestMode:            true,
		JWTSecret:                "0123456789abcdef0123456789abcdef",
		JWTAccessTokenExpirySec:  3600,
		JWTRefreshTokenExpirySec: 7200,
		PairingCodeTTLSec:        300,
		PresetDir:                filepath.Join(dir, "presets"),
		SoundTouchWSPort:         8080,
		ReconnectMinMs:           1000,
		ReconnectMaxMs:           60000,
		PollSchedule:             "@every 5m",
		StateCacheTTLSec:         60,
		AuditRetentionDays:       30,
		AuditPruneSchedule:       "@daily",
		Devices: []config.DeviceConfig{
			{ID: "a0f6fd000001", Name: "Kitchen", Host: "10.0.0.11"},
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	var dial devices.Dialer = func(_ gabbo.Config, handlers gabbo.Handlers, _ zerolog.Logger) devices.Connection {
		return &idleConn{handlers: handlers}
	}
	srv, err := New(cfg, Options{Dial: dial}, zerolog.Nop())
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, handler http.Handler, path string, testMode bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if testMode {
		req.Header.Set("x-test-mode", "true")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestNew_RejectsBadPollSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.PollSchedule = "not a schedule"
	_, err := New(cfg, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	t.Cleanup(func() { srv.Close() })

	rec, body := get(t, srv.Handler(), "/v1/health", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "soundtouch-hub", body["service"])
	deviceCounts := body["devices"].(map[string]any)
	require.Equal(t, float64(1), deviceCounts["total"])
	require.Equal(t, float64(0), deviceCounts["connected"])

	rec, body = get(t, srv.Handler(), "/v1/health/ready", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ready", body["status"])

	rec, _ = get(t, srv.Handler(), "/v1/health/live/", false)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeviceRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	t.Cleanup(func() { srv.Close() })

	rec, _ := get(t, srv.Handler(), "/v1/devices", false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := get(t, srv.Handler(), "/v1/devices", true)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	require.Equal(t, "A0F6FD000001", data[0].(map[string]any)["id"])
}

func TestRun_ConnectsDevicesAndRecordsStartup(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, body := get(t, srv.Handler(), "/v1/health", false)
		return body["devices"].(map[string]any)["connected"] == float64(1)
	}, 5*time.Second, 10*time.Millisecond)

	startup := audit.EventSystemStartup
	events, total, _, err := srv.audit.QueryEvents(audit.EventQueryFilters{Type: &startup})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Hub started", events[0].Message)

	online := audit.EventDeviceOnline
	require.Eventually(t, func() bool {
		_, total, _, err := srv.audit.QueryEvents(audit.EventQueryFilters{Type: &online})
		return err == nil && total == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	require.NoError(t, srv.Close())
}

func TestCommandAuditCarriesRequestAndClient(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	t.Cleanup(func() { srv.Close() })

	tokens, err := srv.issuer.Issue(auth.Client{ID: "c9", Name: "Hall Panel", Origin: auth.OriginPairing})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/devices/A0F6FD000001/volume", strings.NewReader(`{"volume":25}`))
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("X-Request-ID", "panel-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "panel-123", rec.Header().Get("X-Request-ID"))

	failed := audit.EventDeviceCommandFailed
	events, total, _, err := srv.audit.QueryEvents(audit.EventQueryFilters{Type: &failed})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.NotNil(t, events[0].RequestID)
	require.Equal(t, "panel-123", *events[0].RequestID)
	require.NotNil(t, events[0].ClientID)
	require.Equal(t, "c9", *events[0].ClientID)
}
