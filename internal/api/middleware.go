package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mr1hm/fixr/internal/logging"
)

const HeaderXRequestID = "X-Request-Id"

// RequestID reads or generates a request id, echoes it and attaches a logger carrying it
// to the request context.
func RequestID(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header(HeaderXRequestID, requestID)

		reqLogger := logger.With(slog.String("request_id", requestID))
		ctx := logging.WithLogger(c.Request.Context(), reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
