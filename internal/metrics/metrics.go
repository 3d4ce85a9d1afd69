package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathermon_provider_api_calls_total",
			Help: "Total weather provider API calls",
		},
		[]string{"city", "status"},
	)

	ProviderAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weathermon_provider_api_latency_seconds",
			Help:    "Provider API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"city"},
	)

	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathermon_observations_ingested_total",
			Help: "Total observations successfully ingested",
		},
		[]string{"city"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathermon_fetch_failures_total",
			Help: "Provider fetch failures by kind",
		},
		[]string{"city", "kind"},
	)

	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathermon_alerts_fired_total",
			Help: "Alerts created by rule type and severity",
		},
		[]string{"city", "rule", "severity"},
	)

	SummariesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathermon_summaries_built_total",
			Help: "Dashboard summaries generated and saved",
		},
		[]string{"city"},
	)

	RecordsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathermon_records_pruned_total",
			Help: "Records removed by the retention sweeper",
		},
		[]string{"kind"},
	)
)
