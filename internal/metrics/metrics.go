package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summarybot_messages_ingested_total",
			Help: "Total group messages written to the log",
		},
	)

	DigestCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summarybot_digest_cycles_total",
			Help: "Total scheduled digest cycles started",
		},
	)

	DigestJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summarybot_digest_jobs_total",
			Help: "Per-chat digest jobs by outcome",
		},
		[]string{"outcome"}, // "sent", "skipped", "failed"
	)

	GenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summarybot_generation_failures_total",
			Help: "Total generation service failures",
		},
	)

	TransportFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summarybot_transport_failures_total",
			Help: "Total chat delivery failures",
		},
	)

	GenerationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summarybot_generation_latency_seconds",
			Help:    "Generation service call latency",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)
