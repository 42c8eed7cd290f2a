// Package metrics exposes the prometheus collectors shared by the api and
// watcher services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "station_telemetry"

var (
	windowFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "window_fetches_total",
		Help:      "Telemetry window fetches by outcome (ok, failed).",
	}, []string{"outcome"})

	derivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "derivations_total",
		Help:      "Flow derivations by cache outcome (hit, miss).",
	}, []string{"cache"})

	alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_fired_total",
		Help:      "Alert entry transitions by type.",
	}, []string{"type"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification dispatches by outcome (sent, failed).",
	}, []string{"outcome"})

	latestLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "latest_level_meters",
		Help:      "Latest observed level per monitored channel.",
	}, []string{"channel"})
)

// WindowFetched records one window fetch.
func WindowFetched(ok bool) {
	if ok {
		windowFetches.WithLabelValues("ok").Inc()
		return
	}
	windowFetches.WithLabelValues("failed").Inc()
}

// Derived records one derivation request.
func Derived(cacheHit bool) {
	if cacheHit {
		derivations.WithLabelValues("hit").Inc()
		return
	}
	derivations.WithLabelValues("miss").Inc()
}

// AlertFired records an alert entry transition.
func AlertFired(alertType string) {
	alertsFired.WithLabelValues(alertType).Inc()
}

// NotificationSent records a notification dispatch.
func NotificationSent(ok bool) {
	if ok {
		notifications.WithLabelValues("sent").Inc()
		return
	}
	notifications.WithLabelValues("failed").Inc()
}

// SetLatestLevel publishes the latest level seen for a channel.
func SetLatestLevel(channel string, level float64) {
	latestLevel.WithLabelValues(channel).Set(level)
}
