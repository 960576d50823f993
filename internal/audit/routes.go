package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/soundtouch-hub-go/internal/api"
	"github.com/strefethen/soundtouch-hub-go/internal/apperrors"
)

// RegisterRoutes wires audit routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/v1/audit/events", api.Handler(queryEvents(service)))
	router.Method(http.MethodGet, "/v1/audit/events/{event_id}", api.Handler(getEvent(service)))
}

// GET /v1/audit/events
func queryEvents(service *Service) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		filters, err := parseQueryFilters(r)
		if err != nil {
			return err
		}

		events, _, hasMore, err := service.QueryEvents(filters)
		if err != nil {
			return apperrors.NewInternalError("Failed to query audit events")
		}

		formatted := make([]map[string]any, 0, len(events))
		for i := range events {
			formatted = append(formatted, formatEvent(&events[i]))
		}
		return api.WriteList(w, "/v1/audit/events", formatted, hasMore)
	}
}

// GET /v1/audit/events/{event_id}
func getEvent(service *Service) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		eventID := chi.URLParam(r, "event_id")
		event, err := service.GetEvent(eventID)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				return apperrors.NewNotFoundResource("audit_event", eventID)
			}
			return apperrors.NewInternalError("Failed to get audit event")
		}
		return api.WriteResource(w, http.StatusOK, formatEvent(event))
	}
}

func parseQueryFilters(r *http.Request) (EventQueryFilters, error) {
	filters := EventQueryFilters{Limit: DefaultQueryLimit}
	query := r.URL.Query()

	if from := query.Get("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filters, apperrors.NewValidationError("invalid 'from' datetime format, expected ISO 8601", map[string]any{"from": from})
		}
		filters.StartDate = &parsed
	}
	if to := query.Get("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filters, apperrors.NewValidationError("invalid 'to' datetime format, expected ISO 8601", map[string]any{"to": to})
		}
		filters.EndDate = &parsed
	}

	if value := query.Get("type"); value != "" {
		eventType := EventType(value)
		if !eventType.Valid() {
			return filters, apperrors.NewAppError(apperrors.ErrorCodeInvalidEventType, "Unknown event type", http.StatusBadRequest, map[string]any{"type": value})
		}
		filters.Type = &eventType
	}
	if value := query.Get("level"); value != "" {
		level, ok := ParseLevel(value)
		if !ok {
			return filters, apperrors.NewValidationError("invalid level", map[string]any{
				"level":        value,
				"valid_levels": []string{"DEBUG", "INFO", "WARN", "ERROR"},
			})
		}
		filters.Level = &level
	}
	if deviceID := query.Get("device_id"); deviceID != "" {
		filters.DeviceID = &deviceID
	}
	if command := query.Get("command"); command != "" {
		filters.Command = &command
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > MaxQueryLimit {
			return filters, apperrors.NewValidationError("invalid limit, must be between 1 and 1000", map[string]any{"limit": limitStr})
		}
		filters.Limit = limit
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filters, apperrors.NewValidationError("invalid offset, must be >= 0", map[string]any{"offset": offsetStr})
		}
		filters.Offset = offset
	}
	return filters, nil
}

func formatEvent(event *AuditEvent) map[string]any {
	result := map[string]any{
		"object":    "audit_event",
		"id":        event.EventID,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
		"type":      string(event.Type),
		"level":     string(event.Level),
		"message":   event.Message,
	}

	correlation := map[string]any{}
	if event.RequestID != nil {
		correlation["request_id"] = *event.RequestID
	}
	if event.ClientID != nil {
		correlation["client_id"] = *event.ClientID
	}
	if event.DeviceID != nil {
		result["device_id"] = *event.DeviceID
	}
	if event.Command != nil {
		result["command"] = *event.Command
	}
	if len(correlation) > 0 {
		result["correlation"] = correlation
	}
	if len(event.Payload) > 0 {
		result["payload"] = event.Payload
	}
	return result
}
