package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsRecorder records finished HTTP requests
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}

// MetricsMiddleware records request counts and latencies per route template
type MetricsMiddleware struct {
	recorder MetricsRecorder
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(recorder MetricsRecorder) *MetricsMiddleware {
	return &MetricsMiddleware{
		recorder: recorder,
	}
}

// Handle records the request once the response status is known
func (m *MetricsMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// let the error handler write the response so the status is final
			c.Error(err)
		}

		// route templates keep label cardinality bounded
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}

		m.recorder.RecordHTTPRequest(c.Request().Method, path, strconv.Itoa(c.Response().Status), time.Since(start))

		// outer middleware still logs the error; the handler skips committed responses
		return err
	}
}
