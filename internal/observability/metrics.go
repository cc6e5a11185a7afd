// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agora-forum/agora/internal/auth"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	AuthOperations     *prometheus.CounterVec
	ResetNotifications *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates and registers the application metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agora_auth_operations_total",
				Help: "Total number of auth operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		ResetNotifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agora_reset_notifications_total",
				Help: "Total number of password reset notifications by delivery result",
			},
			[]string{"result"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agora_http_request_duration_seconds",
				Help:    "HTTP request latency by route, method and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
	}

	reg.MustRegister(m.AuthOperations, m.ResetNotifications, m.HTTPDuration)
	return m
}

// ObserveOperation implements auth.Observer. Notification outcomes are
// counted separately from the operations that trigger them.
func (m *Metrics) ObserveOperation(operation, result string) {
	if operation == auth.OpNotify {
		m.ResetNotifications.WithLabelValues(result).Inc()
		return
	}
	m.AuthOperations.WithLabelValues(operation, result).Inc()
}

// Instrument records request latency labelled by the matched chi route.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

var _ auth.Observer = (*Metrics)(nil)
