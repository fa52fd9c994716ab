// Package metrics holds the domain collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studio_active_sessions",
			Help: "Number of editing sessions currently held in memory",
		},
	)
	Snaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_snaps_total",
			Help: "Drag moves that snapped to a guide",
		},
		[]string{"axis"},
	)
	HistoryRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_history_records_total",
			Help: "History entries recorded across sessions",
		},
	)
	Exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_exports_total",
			Help: "Exports by format and outcome",
		},
		[]string{"format", "status"},
	)
	ImageLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_image_loads_total",
			Help: "Image dimension lookups by outcome",
		},
		[]string{"status"},
	)
)

// Register adds every domain collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(ActiveSessions, Snaps, HistoryRecords, Exports, ImageLoads)
}

// ObserveSnap counts the axes a snap result locked onto.
func ObserveSnap(x, y bool) {
	if x {
		Snaps.WithLabelValues("x").Inc()
	}
	if y {
		Snaps.WithLabelValues("y").Inc()
	}
}
