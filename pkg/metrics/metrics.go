package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// StoreLoadTotal counts config/schema fetch attempts by outcome
	StoreLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_store_load_total",
			Help: "Config and schema fetch attempts by store and result",
		},
		[]string{"store", "result"},
	)

	// LayoutDuration tracks how long a full layout pass takes
	LayoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphview_layout_duration_seconds",
			Help:    "Duration of a layered layout pass",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	// LayoutFallbackSize counts nodes laid out without a measured size
	LayoutFallbackSize = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphview_layout_fallback_size_total",
			Help: "Nodes that used the fallback size because they were not measured",
		},
	)

	// StyleUnknownType counts records whose type has no config entry
	StyleUnknownType = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_style_unknown_type_total",
			Help: "Records styled with literal fallbacks because their type is not configured",
		},
		[]string{"kind"},
	)

	// RenderTotal counts render passes
	RenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_render_total",
			Help: "Render passes by layout direction and color mode",
		},
		[]string{"direction", "color_by"},
	)

	// PrefsErrorsTotal counts failed client-state reads and writes
	PrefsErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphview_prefs_errors_total",
			Help: "Failed client-state operations by operation",
		},
		[]string{"op"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(StoreLoadTotal)
	prometheus.MustRegister(LayoutDuration)
	prometheus.MustRegister(LayoutFallbackSize)
	prometheus.MustRegister(StyleUnknownType)
	prometheus.MustRegister(RenderTotal)
	prometheus.MustRegister(PrefsErrorsTotal)
}
