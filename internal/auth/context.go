package auth

import (
	"context"
	"time"
)

type contextKey string

const clientKey contextKey = "authClient"

// Client is an API client admitted to the hub, such as a phone app or a
// home automation bridge.
type Client struct {
	ID       string
	Name     string
	Origin   Origin
	PairedAt time.Time
	Type     TokenType
}

// WithClient stores an authenticated client in the context.
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// ClientFromContext returns the authenticated client, if present.
func ClientFromContext(ctx context.Context) (Client, bool) {
	if ctx == nil {
		return Client{}, false
	}
	client, ok := ctx.Value(clientKey).(Client)
	return client, ok
}
