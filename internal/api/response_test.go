package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/soundtouch-hub-go/internal/apperrors"
)

func TestHandler_WritesStripeError(t *testing.T) {
	handler := Handler(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.NewNotFoundResource("Device", "A1")
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/devices/A1", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body StripeErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, apperrors.ErrorTypeInvalidRequest, body.Error.Type)
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestHandler_PlainErrorIsInternal(t *testing.T) {
	handler := Handler(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestWriteList(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteList(rec, "/v1/devices", []string{"a"}, false))

	var body StripeListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "list", body.Object)
	require.Equal(t, "/v1/devices", body.URL)
}

func TestRecovererMiddleware(t *testing.T) {
	handler := RequestContext(zerolog.Nop())(RecovererMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get(RequestIDHeader), "req_"))
}

func TestRequestContext_RequestIDs(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "bridge id", inbound: "ha-7f3c.42", keep: true},
		{name: "missing", inbound: ""},
		{name: "spaces", inbound: "req 1"},
		{name: "header injection", inbound: "a\r\nb"},
		{name: "too long", inbound: strings.Repeat("a", 65)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestContext(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, rec.Header().Get(RequestIDHeader), seen)
			if tt.keep {
				require.Equal(t, tt.inbound, seen)
				return
			}
			require.True(t, strings.HasPrefix(seen, "req_"), seen)
			require.Len(t, seen, 36)
		})
	}
}

func TestRequestLogger_TagsRequestID(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	handler := RequestContext(logger)(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Logger(r, zerolog.Nop()).Info().Msg("inside")
		w.WriteHeader(http.StatusAccepted)
	})))
	req := httptest.NewRequest(http.MethodPost, "/v1/devices/X/volume", nil)
	req.Header.Set(RequestIDHeader, "bridge-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		require.Equal(t, "bridge-1", entry["request_id"])
	}
	require.Contains(t, lines[1], `"status":202`)
}

func TestLogger_FallbackWithoutContext(t *testing.T) {
	var logs bytes.Buffer
	Logger(httptest.NewRequest(http.MethodGet, "/", nil), zerolog.New(&logs)).Info().Msg("fallback")
	require.Contains(t, logs.String(), "fallback")
}
