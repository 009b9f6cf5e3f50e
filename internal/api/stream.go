package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"github.com/mr1hm/fixr/internal/logging"
	"github.com/mr1hm/fixr/internal/service"
	"github.com/mr1hm/fixr/internal/validation"
)

// streamReports pushes the pin of every new report as a server-sent event until the
// client leaves or the feed shuts down.
func (h *Handler) streamReports(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed disabled"})
		return
	}

	var bounds *orb.Bound
	if raw := c.Query("bbox"); raw != "" {
		b, err := validation.ParseBBox(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		bounds = &b
	}

	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	log := logging.FromContext(c.Request.Context())
	log.Debug("feed subscriber connected", "subscriber", id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case pin, ok := <-ch:
			if !ok {
				return false
			}
			if service.PinInBounds(pin, bounds) {
				c.SSEvent("report", pin)
			}
			return true
		}
	})

	log.Debug("feed subscriber disconnected", "subscriber", id)
}
