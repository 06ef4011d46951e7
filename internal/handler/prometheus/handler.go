// Package prometheus instruments the HTTP surface and serves the scrape
// endpoint. Domain metrics live in pkg/metrics; both register on the
// default registry so one endpoint exposes everything.
package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func New() *Handler {
	return &Handler{
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration by route and status",
		}, []string{"method", "path", "status"}),
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"method", "path", "status"}),
	}
}

// Middleware records per-route request metrics. Routes are labelled by
// their pattern, not the raw URL, to keep cardinality bounded.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		h.duration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		h.requests.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// Handler serves the scrape endpoint for the default registry.
func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
