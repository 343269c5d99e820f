package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// WSHandler upgrades event-stream connections and streams committed ledger
// events as JSON text frames. A `kinds` query param (comma separated)
// narrows the feed.
type WSHandler struct {
	Hub    *Hub
	Logger *zap.Logger
}

func (h *WSHandler) Serve(c *gin.Context) {
	if h == nil || h.Hub == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checks are the proxy's job
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	kinds := parseKinds(c.Query("kinds"))
	events, cancel := h.Hub.Subscribe(subscriberBuffer)
	defer cancel()

	ctx := c.Request.Context()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := h.ping(ctx, conn); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if len(kinds) > 0 && !kinds[event.Kind] {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := h.write(ctx, conn, payload); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) ping(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Ping(ctx)
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func parseKinds(raw string) map[string]bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}
