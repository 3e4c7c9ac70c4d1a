package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles the process-level Prometheus instruments the RAG
// pipeline reports against: embedding cache effectiveness, provider-call
// retries, ingest stage latency, and streamed answer events.
type Collectors struct {
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	RetryAttempts prometheus.Counter
	IngestStage   *prometheus.HistogramVec
	StreamEvents  *prometheus.CounterVec
}

// NewCollectors constructs and registers the collectors against reg. reg
// may be prometheus.DefaultRegisterer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "embedcache",
			Name:      "hits_total",
			Help:      "Embedding cache lookups that found a cached vector, by task type.",
		}, []string{"task_type"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "embedcache",
			Name:      "misses_total",
			Help:      "Embedding cache lookups that required a provider call, by task type.",
		}, []string{"task_type"}),
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "provider",
			Name:      "retry_attempts_total",
			Help:      "Retried provider calls (embedding, LLM, storage) due to a transient failure.",
		}),
		IngestStage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each ingestion pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "answer",
			Name:      "stream_events_total",
			Help:      "Streamed answer events emitted, by event type.",
		}, []string{"type"}),
	}
	reg.MustRegister(c.CacheHits, c.CacheMisses, c.RetryAttempts, c.IngestStage, c.StreamEvents)
	return c
}
