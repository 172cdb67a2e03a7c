package httpmiddleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"halaqa/internal/metrics"
)

// Instrument records request count and latency per matched route.
// Unmatched paths share one label to bound cardinality.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
