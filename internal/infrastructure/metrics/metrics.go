package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the ingest pipeline
type Metrics struct {
	RowsMerged       *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	OrphansDropped   *prometheus.CounterVec
	MalformedLines   *prometheus.CounterVec
	WebhooksReceived *prometheus.CounterVec
	SyncRuns         *prometheus.CounterVec
}

// New registers the pipeline metrics on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RowsMerged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_rows_merged_total",
			Help: "Canonical rows written by the merge engine",
		}, []string{"entity", "result"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_stage_duration_seconds",
			Help:    "Wall-clock duration of one sync stage",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"stage", "status"}),
		OrphansDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_orphaned_children_total",
			Help: "Child records dropped because their parent never appeared in the export",
		}, []string{"stage"}),
		MalformedLines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_malformed_lines_total",
			Help: "Export lines skipped because they could not be parsed",
		}, []string{"stage"}),
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_webhooks_received_total",
			Help: "Webhook deliveries received, by topic and outcome",
		}, []string{"topic", "outcome"}),
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_sync_runs_total",
			Help: "Full sync runs, by final status",
		}, []string{"status"}),
	}
}

// NewDefault registers on the default Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
