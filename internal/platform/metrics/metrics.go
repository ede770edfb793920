// Package metrics exposes Prometheus collectors for the HTTP surface and the
// registration workflows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinic/clinic/internal/platform/httpx"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "route", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clinic", Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic", Name: "registrations_total", Help: "Completed registration workflows",
	}, []string{"entity", "op"})
	CodeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clinic", Name: "record_code_retries_total", Help: "Medical record code conflicts retried",
	})
	BookingConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clinic", Name: "appointment_conflicts_total", Help: "Appointment bookings rejected for overlap",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clinic", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, Registrations, CodeRetries, BookingConflicts, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// Middleware records request count and latency per route template, so
// path parameters do not explode label cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status, _ = httpx.StatusFor(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			HTTPDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
