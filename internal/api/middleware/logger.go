package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger returns a gin middleware for logging requests
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path

		// Process request
		c.Next()

		// Stop timer
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		// Log request details
		entry := log.With().
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", clientIP).
			Str("method", method).
			Str("path", path).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Logger()

		if statusCode >= 500 {
			entry.Error().Msg("Server error")
		} else if statusCode >= 400 {
			entry.Warn().Msg("Client error")
		} else {
			entry.Info().Msg("Request processed")
		}
	}
}
