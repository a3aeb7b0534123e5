// Package metrics содержит prometheus-метрики конвейера детекции.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImagesProcessed считает обработанные изображения по исходу:
	// positive, negative, failed.
	ImagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crackwatch_images_processed_total",
			Help: "Total number of images taken through inference",
		},
		[]string{"outcome"},
	)

	CracksDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crackwatch_cracks_detected_total",
			Help: "Total number of crack bounding boxes detected",
		},
	)

	SessionCracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crackwatch_session_cracks",
			Help: "Running crack total of the current ingestion session",
		},
	)

	// LogAppends: ok, error
	LogAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crackwatch_log_appends_total",
			Help: "Detection log append attempts by result",
		},
		[]string{"result"},
	)

	// GeoLookups: ok, network, timeout, status, payload
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crackwatch_geolocation_lookups_total",
			Help: "Geolocation lookups by result",
		},
		[]string{"result"},
	)

	// Alerts: sent, failed, skipped, disabled
	Alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crackwatch_alerts_total",
			Help: "Crack alerts by delivery result",
		},
		[]string{"result"},
	)

	// HTTPRequests запросы к дашборду по маршруту и коду ответа
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crackwatch_http_requests_total",
			Help: "Dashboard HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)
