package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// heartbeat keeps idle proxies from closing the stream.
var heartbeat = 25 * time.Second

// Stream pushes queue and hadith changes as server-sent events until the
// client goes away.
func (h *Handler) Stream(c *gin.Context) {
	ch, cancel := h.events.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.SSEvent("ready", gin.H{"subject": subject(c)})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
