package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests, tagged with the correlation ID set
// by RequestID.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			latency := time.Since(start)
			log.Printf("[%s] %s %s rid=%s - %d (%s)",
				req.Method,
				req.RequestURI,
				req.RemoteAddr,
				requestID(c),
				res.Status,
				latency,
			)

			return err
		}
	}
}

func requestID(c echo.Context) string {
	if rid, ok := c.Get("request_id").(string); ok {
		return rid
	}
	return "-"
}
