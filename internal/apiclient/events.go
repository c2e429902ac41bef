package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/WeDesignz/WebApp-sub000/internal/events"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

// WatchEvents streams the caller's events until ctx ends or the server closes
// the socket. A downloads.invalidated event drops inv's cache before fn runs.
// inv and fn may be nil.
func (c *Client) WatchEvents(ctx context.Context, inv mockpdf.Invalidator, fn func(events.Event)) error {
	target := c.baseURL + apiPrefix + "/mock-pdf/events"
	switch {
	case strings.HasPrefix(target, "https://"):
		target = "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		target = "ws://" + strings.TrimPrefix(target, "http://")
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if ev.Type == events.TypeDownloadsInvalidated && inv != nil {
			inv.InvalidateDownloads(ctx)
		}
		if fn != nil {
			fn(ev)
		}
	}
}
