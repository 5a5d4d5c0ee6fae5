package middleware

import (
	"time"

	"wallet-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per matched route template,
// so path parameters do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
