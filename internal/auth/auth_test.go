package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/soundtouch-hub-go/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		NodeEnv:                  "development",
		JWTSecret:                "0123456789abcdef0123456789abcdef",
		JWTAccessTokenExpirySec:  60,
		JWTRefreshTokenExpirySec: 120,
	}
}

var pairedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func phoneClient() Client {
	return Client{ID: "c1", Name: "Phone", Origin: OriginPairing, PairedAt: pairedAt}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testConfig())
	pair, err := issuer.Issue(phoneClient())
	require.NoError(t, err)

	client, err := issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	want := phoneClient()
	want.Type = TokenTypeAccess
	require.Equal(t, want, Client{ID: client.ID, Name: client.Name, Origin: client.Origin, PairedAt: client.PairedAt.UTC(), Type: client.Type})

	_, _, err = issuer.Refresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenType)

	access, expires, err := issuer.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, 60, expires)
	refreshed, err := issuer.Verify(access)
	require.NoError(t, err)
	require.Equal(t, "c1", refreshed.ID)
	require.Equal(t, OriginPairing, refreshed.Origin)
	require.True(t, pairedAt.Equal(refreshed.PairedAt))

	other := testConfig()
	other.JWTSecret = "ffffffffffffffffffffffffffffffff"
	_, err = NewTokenIssuer(other).Verify(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_StampsPairingTime(t *testing.T) {
	issuer := NewTokenIssuer(testConfig())
	issuer.now = func() time.Time { return pairedAt }

	pair, err := issuer.Issue(Client{ID: "c2", Name: "Bridge", Origin: OriginPairing})
	require.NoError(t, err)
	client, err := issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.True(t, pairedAt.Equal(client.PairedAt))
}

func TestTokenIssuer_RejectsUnknownOrigin(t *testing.T) {
	issuer := NewTokenIssuer(testConfig())
	client := phoneClient()
	client.Origin = "elsewhere"
	pair, err := issuer.Issue(client)
	require.NoError(t, err)
	_, err = issuer.Verify(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.JWTAccessTokenExpirySec = -10
	issuer := NewTokenIssuer(cfg)
	pair, err := issuer.Issue(phoneClient())
	require.NoError(t, err)
	_, err = issuer.Verify(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestPairingStore_Redeem(t *testing.T) {
	store := NewPairingStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	code, err := store.Create("req-1")
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.NoError(t, store.Redeem(code))
	require.ErrorIs(t, store.Redeem(code), ErrPairingInvalid)

	code, err = store.Create("req-2")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, store.Redeem(code), ErrPairingExpired)

	_, err = store.Create("req-3")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, store.CleanupExpired())
	require.Zero(t, store.Pending())
}

func newAuthRouter(cfg config.Config) http.Handler {
	router := chi.NewRouter()
	issuer := NewTokenIssuer(cfg)
	router.Use(Middleware(cfg, issuer))
	RegisterRoutes(router, NewPairingStore(time.Minute), issuer, cfg, zerolog.Nop())
	router.Get("/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		client, _ := ClientFromContext(r.Context())
		_, _ = w.Write([]byte(client.Name))
	})
	return router
}

func TestMiddleware(t *testing.T) {
	cfg := testConfig()
	router := newAuthRouter(cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/devices", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	pair, err := NewTokenIssuer(cfg).Issue(phoneClient())
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "AUTH_TOKEN_INVALID")

	req = httptest.NewRequest(http.MethodGet, "/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Phone", rec.Body.String())
}

func TestTestModeToken(t *testing.T) {
	cfg := testConfig()
	rec := httptest.NewRecorder()
	newAuthRouter(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/token", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	cfg.AllowTestMode = true
	router := newAuthRouter(cfg)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewBufferString(`{"client_name":"CI"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	client, err := NewTokenIssuer(cfg).Verify(body["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, "CI", client.Name)
	require.Equal(t, OriginTestMode, client.Origin)
	require.Equal(t, "test_mode", body["client"].(map[string]any)["origin"])

	req := httptest.NewRequest(http.MethodGet, "/v1/devices", nil)
	req.Header.Set("x-test-mode", "true")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "Test Client", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+body["access_token"].(string))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "CI", rec.Body.String())

	cfg.AllowTestMode = false
	rec = httptest.NewRecorder()
	newAuthRouter(cfg).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "AUTH_TOKEN_INVALID")
}

func TestTestModeToken_RejectsMalformedBody(t *testing.T) {
	cfg := testConfig()
	cfg.AllowTestMode = true
	rec := httptest.NewRecorder()
	newAuthRouter(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewBufferString(`{"client_name":`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = httptest.NewRecorder()
	newAuthRouter(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Test Client", body["client"].(map[string]any)["name"])
}
