package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. All methods are safe on a
// nil receiver so callers never branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	embedRequests  *prometheus.CounterVec
	ingestedChunks prometheus.Counter
	ingestOutcome  *prometheus.CounterVec

	retrievalLatency *prometheus.HistogramVec
	retrievalDocs    prometheus.Histogram

	sagaOutcomes *prometheus.CounterVec
	lockWaits    *prometheus.CounterVec

	modelRequests *prometheus.HistogramVec
	vectorOps     *prometheus.HistogramVec

	vectorProviderActive    *prometheus.GaugeVec
	vectorProviderBootstrap *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process metrics, or nil before Init.
func Current() *Metrics {
	return instance
}

// Init builds the metrics once on a private registry (so tests can call it
// repeatedly) and makes them Current.
func Init() *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
	})
	return instance
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondbrain_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secondbrain_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "secondbrain_http_requests_inflight",
			Help: "HTTP requests currently being served",
		}),
		embedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondbrain_embedding_requests_total",
			Help: "Embedding requests by outcome",
		}, []string{"outcome"}),
		ingestedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secondbrain_ingested_chunks_total",
			Help: "Chunks upserted into the vector store",
		}),
		ingestOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondbrain_ingest_total",
			Help: "Ingest calls by outcome",
		}, []string{"outcome"}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secondbrain_retrieval_duration_seconds",
			Help:    "Retrieval latency by status",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"status"}),
		retrievalDocs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "secondbrain_retrieval_documents",
			Help:    "Documents scored per retrieval",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		sagaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondbrain_saga_runs_total",
			Help: "Deletion saga runs by final status",
		}, []string{"kind", "status"}),
		lockWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondbrain_doc_lock_total",
			Help: "Per-document lock acquisitions by result",
		}, []string{"result"}),
		modelRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secondbrain_model_request_duration_seconds",
			Help:    "Upstream model API latency by endpoint and status",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"endpoint", "status"}),
		vectorOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secondbrain_vector_store_operation_duration_seconds",
			Help:    "Vector store calls by provider, operation and status",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider", "operation", "status"}),
		vectorProviderActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "secondbrain_vector_store_provider_active",
			Help: "1 for the vector store provider selected at startup",
		}, []string{"provider"}),
		vectorProviderBootstrap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondbrain_vector_store_provider_bootstrap_total",
			Help: "Vector store provider bootstrap attempts by result and error code",
		}, []string{"provider", "result", "code"}),
	}
	reg.MustRegister(
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.embedRequests,
		m.ingestedChunks,
		m.ingestOutcome,
		m.retrievalLatency,
		m.retrievalDocs,
		m.sagaOutcomes,
		m.lockWaits,
		m.modelRequests,
		m.vectorOps,
		m.vectorProviderActive,
		m.vectorProviderBootstrap,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// TrackInflight bumps the in-flight gauge and returns the matching release.
func (m *Metrics) TrackInflight() func() {
	if m == nil {
		return func() {}
	}
	m.apiInflight.Inc()
	return m.apiInflight.Dec
}

func (m *Metrics) IncEmbedding(outcome string) {
	if m == nil {
		return
	}
	m.embedRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIngest(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.ingestOutcome.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		m.ingestedChunks.Add(float64(chunks))
	}
}

func (m *Metrics) ObserveRetrieval(status string, docs int, dur time.Duration) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(status).Observe(dur.Seconds())
	if status == "ok" {
		m.retrievalDocs.Observe(float64(docs))
	}
}

func (m *Metrics) IncSaga(kind, status string) {
	if m == nil {
		return
	}
	m.sagaOutcomes.WithLabelValues(kind, status).Inc()
}

// IncLock counts a lock attempt; result is acquired|busy|error.
func (m *Metrics) IncLock(result string) {
	if m == nil {
		return
	}
	m.lockWaits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveModelRequest(endpoint, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.modelRequests.WithLabelValues(endpoint, status).Observe(dur.Seconds())
}

func (m *Metrics) ObserveVectorStoreOperation(provider, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.WithLabelValues(provider, operation, status).Observe(dur.Seconds())
}

func (m *Metrics) SetVectorStoreProviderActive(provider string) {
	if m == nil {
		return
	}
	m.vectorProviderActive.Reset()
	m.vectorProviderActive.WithLabelValues(provider).Set(1)
}

func (m *Metrics) ObserveVectorStoreProviderBootstrap(provider, result, code string) {
	if m == nil {
		return
	}
	m.vectorProviderBootstrap.WithLabelValues(provider, result, code).Inc()
}
