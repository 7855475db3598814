// Package metrics exposes gateway-level Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_sessions_active",
		Help: "Currently active voice sessions",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_sessions_total",
		Help: "Sessions ended, by end reason",
	}, []string{"reason"})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_turns_total",
		Help: "Completed conversation turns",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_stage_duration_seconds",
		Help:    "Per-stage latency per turn",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	RoundTripDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_round_trip_duration_seconds",
		Help:    "Turn start to first synthesized audio",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_errors_total",
		Help: "Error counts by pipeline stage and code",
	}, []string{"stage", "code"})

	AudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_audio_chunks_received_total",
		Help: "Inbound audio chunks across all sessions",
	})
)
