package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/view"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

const eventHeartbeat = "heartbeat"

type heartbeatPayload struct {
	Timestamp int64 `json:"ts"`
}

// handleStream sends the current table followed by every view event until the client leaves.
func (h *httpHandler) handleStream(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream_unavailable"})
		return
	}

	ctx := c.Request.Context()
	messages, cleanup := h.realtime.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Render(-1, sse.Event{
		Event: view.EventTableReset,
		Data:  view.TableResetEvent{Rows: rowViews(h.view.Rows())},
	})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-messages:
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{
				Id:    message.ID,
				Event: message.EventType,
				Data:  message.Data,
			})
			return true
		case <-ticker.C:
			c.SSEvent(eventHeartbeat, heartbeatPayload{Timestamp: h.clock().UTC().Unix()})
			return true
		}
	})
}
