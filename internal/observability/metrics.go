package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of control API requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "Control API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of open websocket scopes.",
		},
		[]string{"scope"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"scope", "event"},
	)
	wsReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_reconnect_attempts_total",
			Help: "Total number of websocket reconnect attempts.",
		},
		[]string{"scope"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_frames_total",
			Help: "Inbound frames by outcome.",
		},
		[]string{"scope", "result"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_commands_total",
			Help: "Dispatched commands by outcome.",
		},
		[]string{"command", "result"},
	)
	notificationsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_dropped_total",
			Help: "Notifications dropped because a lossy subscriber fell behind.",
		},
		[]string{"subscriber"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsReconnectsTotal,
		framesTotal,
		commandsTotal,
		notificationsDroppedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(scope string) {
	wsActiveConnections.WithLabelValues(scope).Inc()
}

func DecWSActive(scope string) {
	wsActiveConnections.WithLabelValues(scope).Dec()
}

func IncWSEvent(scope, event string) {
	wsEventsTotal.WithLabelValues(scope, event).Inc()
}

func IncWSReconnect(scope string) {
	wsReconnectsTotal.WithLabelValues(scope).Inc()
}

func IncFrame(scope, result string) {
	framesTotal.WithLabelValues(scope, result).Inc()
}

func IncCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	commandsTotal.WithLabelValues(command, result).Inc()
}

func IncNotificationDropped(subscriber string) {
	notificationsDroppedTotal.WithLabelValues(subscriber).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
