// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BroadcastEvents counts publish attempts by transport and result (ok, failed)
	BroadcastEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "broadcast_events_total",
		Help:      "Broadcast publish attempts by transport and result.",
	}, []string{"transport", "result"})

	// WebsocketClients is the number of currently connected websocket clients
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "websocket_clients",
		Help:      "Connected websocket clients.",
	})

	// WebsocketDropped counts clients disconnected because their send buffer was full
	WebsocketDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "websocket_dropped_clients_total",
		Help:      "Clients dropped because they could not keep up with the broadcast.",
	})

	// HTTPRequestDuration observes handler latency per route
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chat",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request latency. Routes are labelled by their pattern, not the raw path.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
