package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lostfound",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lostfound",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	MatchSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lostfound",
		Name:      "match_searches_total",
		Help:      "Image match searches by outcome",
	}, []string{"outcome"})

	MatchCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lostfound",
		Name:      "match_candidates",
		Help:      "Candidates returned by the similarity service per search",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	MatchedReports = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lostfound",
		Name:      "matched_reports",
		Help:      "Eligible reports correlated per search",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	FavoritesMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lostfound",
		Name:      "favorites_merged_total",
		Help:      "Reports merged back into the store from a favorites save",
	}, []string{"result"})

	SimilarityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lostfound",
		Name:      "similarity_request_duration_seconds",
		Help:      "Round trip to the image similarity service",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	ImagesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lostfound",
		Name:      "images_indexed_total",
		Help:      "Images embedded into the similarity index",
	}, []string{"source"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lostfound",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ImageQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lostfound",
		Name:      "image_queue_depth",
		Help:      "Uploaded images waiting to be indexed",
	})
)
