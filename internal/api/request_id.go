package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// RequestContext gives every request an id and a logger tagged with it. An
// inbound X-Request-ID is kept when it is a short token of letters, digits,
// '-', '_' or '.', so ids from home automation bridges line up with the audit
// log; anything else is replaced by a generated "req_" id.
func RequestContext(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if !validRequestID(requestID) {
				requestID = newRequestID()
			}

			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			ctx = reqLogger.WithContext(ctx)
			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID for the current request.
func GetRequestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	requestID, _ := r.Context().Value(requestIDKey).(string)
	return requestID
}

// Logger returns the request logger installed by RequestContext, or fallback
// when the request has none.
func Logger(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if r != nil {
		if logger := zerolog.Ctx(r.Context()); logger.GetLevel() != zerolog.Disabled {
			return logger
		}
	}
	return &fallback
}

func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
