package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 25 * time.Second

// StreamEvents pushes gateway events to the client as server-sent events.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is disabled"})
		return
	}

	ctx := c.Request.Context()
	ch, cancel := h.events.Subscribe(ctx)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"status": "subscribed"})
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(evt.Type, evt)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		}
	})
}
