package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"linguaflow/internal/models"
)

// Metrics holds all custom Prometheus metrics for the pedagogy loop
type Metrics struct {
	SessionsPrepared   prometheus.Counter
	SessionsSummarized prometheus.Counter
	ActiveSessions     prometheus.Gauge

	Activities  *prometheus.CounterVec
	Adaptations *prometheus.CounterVec

	EncountersRecorded prometheus.Counter
	EncountersFailed   prometheus.Counter
	ChunksGraduated    prometheus.Counter
	ChunksFragile      prometheus.Counter

	DecayRunsTotal   prometheus.Counter
	DecayRunDuration prometheus.Histogram
	DecayedProfiles  prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		SessionsPrepared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_sessions_prepared_total",
			Help: "Total number of session plans prepared",
		}),
		SessionsSummarized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_sessions_summarized_total",
			Help: "Total number of sessions summarized",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linguaflow_sessions_active",
			Help: "Number of sessions currently in memory",
		}),

		Activities: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linguaflow_activities_total",
			Help: "Total number of reported activities by type and outcome",
		}, []string{"type", "outcome"}), // outcome: "correct" or "wrong"

		Adaptations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linguaflow_adaptations_total",
			Help: "Total number of real-time adaptations by type",
		}, []string{"type"}),

		EncountersRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_encounters_recorded_total",
			Help: "Total number of chunk encounters persisted",
		}),
		EncountersFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_encounters_failed_total",
			Help: "Total number of chunk encounter writes that failed",
		}),
		ChunksGraduated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_chunks_graduated_total",
			Help: "Total number of chunks that reached ACQUIRED",
		}),
		ChunksFragile: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_chunks_fragile_total",
			Help: "Total number of chunks demoted to FRAGILE",
		}),

		DecayRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_filter_decay_runs_total",
			Help: "Total number of nightly filter-risk decay runs",
		}),
		DecayRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "linguaflow_filter_decay_run_duration_seconds",
			Help:    "Filter-risk decay run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		DecayedProfiles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linguaflow_filter_decay_profiles_total",
			Help: "Total number of profiles whose filter risk was decayed",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (nil before InitMetrics)
func GetMetrics() *Metrics {
	return globalMetrics
}

func recordActivity(activityType models.ActivityType, correct bool) {
	if globalMetrics == nil {
		return
	}
	outcome := "wrong"
	if correct {
		outcome = "correct"
	}
	globalMetrics.Activities.WithLabelValues(string(activityType), outcome).Inc()
}

func recordAdaptation(adaptationType models.AdaptationType) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.Adaptations.WithLabelValues(string(adaptationType)).Inc()
}

func recordBatchMetrics(batch models.EncounterBatchResult) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.EncountersRecorded.Add(float64(batch.Updated))
	globalMetrics.EncountersFailed.Add(float64(batch.Failed))
	globalMetrics.ChunksGraduated.Add(float64(batch.Graduated))
	globalMetrics.ChunksFragile.Add(float64(batch.BecameFragile))
}
