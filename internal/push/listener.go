// Package push maintains the websocket connection that delivers silent
// change notifications. Delivery is best effort: failures are logged and
// the connection is retried, but nothing here ever propagates an error to
// foreground work.
package push

import (
	"context"
	"log/slog"
	"time"

	"nhooyr.io/websocket"
)

// Reconnect delays are vars so tests can shorten them.
var (
	initialReconnect = time.Second
	maxReconnect     = 30 * time.Second
)

// Handler consumes one raw push payload.
type Handler interface {
	HandlePush(ctx context.Context, raw []byte)
}

// Listener dials the push endpoint and feeds payloads to the handler.
type Listener struct {
	url     string
	apiKey  string
	handler Handler
}

// NewListener creates a listener for the given push URL.
func NewListener(url, apiKey string, handler Handler) *Listener {
	return &Listener{url: url, apiKey: apiKey, handler: handler}
}

// Run connects and reads until ctx is cancelled, reconnecting with capped
// backoff after any failure.
func (l *Listener) Run(ctx context.Context) error {
	backoff := initialReconnect
	for {
		connected, err := l.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			// The dial succeeded, so the outage is fresh: back off from the
			// start again instead of carrying over an inflated delay.
			backoff = initialReconnect
		}
		slog.Warn("push connection lost, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnect {
			backoff = maxReconnect
		}
	}
}

// connectAndRead dials and reads until the connection drops. The bool
// reports whether a connection was established at all.
func (l *Listener) connectAndRead(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	opts := &websocket.DialOptions{}
	if l.apiKey != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + l.apiKey},
		}
	}
	conn, _, err := websocket.Dial(dialCtx, l.url, opts)
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	slog.Debug("push connection established", "url", l.url)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		l.handler.HandlePush(ctx, data)
	}
}
