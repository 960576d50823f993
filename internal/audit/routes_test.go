package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRoutes_QueryEvents(t *testing.T) {
	service, _ := setupTestService(t)
	service.Record(WriteEventInput{Type: EventDeviceCommand, DeviceID: "DEN", Command: "mute", ClientID: "c1", Message: "mute"})
	service.Record(WriteEventInput{Type: EventSystemStartup, Message: "up"})

	router := chi.NewRouter()
	RegisterRoutes(router, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events?device_id=DEN", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Object  string           `json:"object"`
		Data    []map[string]any `json:"data"`
		HasMore bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "list", body.Object)
	require.Len(t, body.Data, 1)
	require.Equal(t, "mute", body.Data[0]["command"])
	require.Equal(t, map[string]any{"client_id": "c1"}, body.Data[0]["correlation"])

	id := body.Data[0]["id"].(string)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"object":"audit_event"`)
}

func TestRoutes_Validation(t *testing.T) {
	service, _ := setupTestService(t)
	router := chi.NewRouter()
	RegisterRoutes(router, service)

	for _, tc := range []struct {
		url  string
		code int
		body string
	}{
		{"/v1/audit/events?type=NOPE", http.StatusBadRequest, "INVALID_EVENT_TYPE"},
		{"/v1/audit/events?level=LOUD", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/v1/audit/events?limit=0", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/v1/audit/events?offset=-1", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/v1/audit/events?from=yesterday", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/v1/audit/events/missing", http.StatusNotFound, "NOT_FOUND"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
		require.Equal(t, tc.code, rec.Code, tc.url)
		require.Contains(t, rec.Body.String(), tc.body, tc.url)
	}
}
