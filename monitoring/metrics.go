package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal 预测请求计数，outcome: ok / validation_error / model_unavailable / prediction_error
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trunkfat_predictions_total",
			Help: "Total number of prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	// PredictionValue 预测结果分布
	PredictionValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trunkfat_prediction_percent",
			Help:    "Distribution of served trunk fat percentages",
			Buckets: []float64{5, 10, 15, 20, 25, 28.6, 35, 40, 45, 50},
		},
	)

	// ModelReloads 模型重载计数，trigger: startup / predict_failure / file_change
	ModelReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trunkfat_model_reloads_total",
			Help: "Total number of model reload attempts by trigger",
		},
		[]string{"trigger"},
	)

	// CacheHits 预测结果缓存命中
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trunkfat_prediction_cache_hits_total",
			Help: "Total number of prediction cache hits",
		},
	)

	// HTTPRequestsTotal HTTP请求计数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trunkfat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP请求延迟
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trunkfat_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
