// Package dnametrics provides observability for the ingestion pipeline.
//
// Metrics are optional — New(false) returns a nil *Metrics, and every
// method on *Metrics is nil-safe, so a disabled instance collects
// nothing at zero overhead, matching the pattern used throughout the
// pipeline's ancestor codebase.
package dnametrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the counters described in §4.6 of the ingestion pipeline
// specification, backed by Prometheus collectors registered against a
// private registry.
type Metrics struct {
	registry *prometheus.Registry

	totalBytesReceived    prometheus.Counter
	totalBytesProcessed   prometheus.Counter
	totalSequencesAccepted prometheus.Counter
	validationErrors      prometheus.Counter
	parsingErrors         prometheus.Counter
	storageErrors         prometheus.Counter
	activeConnections     prometheus.Gauge
	connectionsAccepted   prometheus.Counter
	connectionsRejected   prometheus.Counter
	queueDepth            prometheus.Gauge
	persistDuration       prometheus.Histogram

	startTime time.Time
}

// New creates a Metrics instance registered against a fresh private
// registry. Enabled controls whether a real registry backs the counters;
// when false, New returns nil so every method call below is a no-op.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}

	reg := prometheus.NewRegistry()

	return &Metrics{
		registry: reg,
		totalBytesReceived: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_total_bytes_received",
			Help: "Total bytes received by the TCP ingress server.",
		}),
		totalBytesProcessed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_total_bytes_processed",
			Help: "Total validated sequence bytes processed by workers.",
		}),
		totalSequencesAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_total_sequences_accepted",
			Help: "Total sequence records persisted by a worker.",
		}),
		validationErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_validation_errors_total",
			Help: "Records rejected for containing a non-ACGTN byte.",
		}),
		parsingErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_parsing_errors_total",
			Help: "Records rejected by the frame parser (malformed framing, over-length).",
		}),
		storageErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_storage_errors_total",
			Help: "Records dropped after a persistence I/O failure.",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dnapipe_active_connections",
			Help: "Current number of open ingress TCP connections.",
		}),
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_connections_accepted_total",
			Help: "Total TCP connections accepted.",
		}),
		connectionsRejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dnapipe_connections_rejected_total",
			Help: "Connections accepted then immediately closed due to MAX_CLIENTS.",
		}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dnapipe_queue_depth",
			Help: "Current number of records buffered in the work queue.",
		}),
		persistDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dnapipe_persist_duration_milliseconds",
			Help:    "Duration of writing a single record's file.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
		}),
		startTime: time.Now(),
	}
}

// Registry exposes the underlying Prometheus registry for an HTTP
// /metrics handler, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// AddBytesReceived records bytes read off the wire by the ingress reader.
func (m *Metrics) AddBytesReceived(n int) {
	if m == nil {
		return
	}
	m.totalBytesReceived.Add(float64(n))
}

// AddBytesProcessed records validated sequence bytes handled by a worker.
func (m *Metrics) AddBytesProcessed(n int) {
	if m == nil {
		return
	}
	m.totalBytesProcessed.Add(float64(n))
}

// IncSequencesAccepted records one record persisted by a worker.
func (m *Metrics) IncSequencesAccepted() {
	if m == nil {
		return
	}
	m.totalSequencesAccepted.Inc()
}

// IncValidationErrors records one record rejected for invalid bytes.
func (m *Metrics) IncValidationErrors() {
	if m == nil {
		return
	}
	m.validationErrors.Inc()
}

// IncParsingErrors records one record rejected by the frame parser.
func (m *Metrics) IncParsingErrors() {
	if m == nil {
		return
	}
	m.parsingErrors.Inc()
}

// IncStorageErrors records one record dropped after a persistence failure.
func (m *Metrics) IncStorageErrors() {
	if m == nil {
		return
	}
	m.storageErrors.Inc()
}

// SetActiveConnections updates the current open-connection gauge.
func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(n))
}

// IncConnectionsAccepted records one accepted TCP connection.
func (m *Metrics) IncConnectionsAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

// IncConnectionsRejected records one connection closed for exceeding
// MAX_CLIENTS.
func (m *Metrics) IncConnectionsRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

// SetQueueDepth updates the current work queue depth gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObservePersistDuration records the time spent writing a single
// record's file, after it has been encoded.
func (m *Metrics) ObservePersistDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.persistDuration.Observe(float64(d.Microseconds()) / 1000.0)
}

// StartTime returns the process start time, or the zero Time if metrics
// are disabled.
func (m *Metrics) StartTime() time.Time {
	if m == nil {
		return time.Time{}
	}
	return m.startTime
}

// Snapshot is a point-in-time read of every counter, for the periodic
// stdout status line and the optional /status HTTP endpoint.
type Snapshot struct {
	BytesReceived      uint64
	BytesProcessed     uint64
	SequencesAccepted  uint64
	ValidationErrors   uint64
	ParsingErrors      uint64
	StorageErrors      uint64
	ActiveConnections  int
	ConnectionsAccepted uint64
	ConnectionsRejected uint64
	QueueDepth         int
}

// Snapshot reads back the current value of every collector. Returns the
// zero Snapshot when metrics are disabled.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		BytesReceived:       readCounter(m.totalBytesReceived),
		BytesProcessed:      readCounter(m.totalBytesProcessed),
		SequencesAccepted:   readCounter(m.totalSequencesAccepted),
		ValidationErrors:    readCounter(m.validationErrors),
		ParsingErrors:       readCounter(m.parsingErrors),
		StorageErrors:       readCounter(m.storageErrors),
		ActiveConnections:   int(readGauge(m.activeConnections)),
		ConnectionsAccepted: readCounter(m.connectionsAccepted),
		ConnectionsRejected: readCounter(m.connectionsRejected),
		QueueDepth:          int(readGauge(m.queueDepth)),
	}
}

func readCounter(c prometheus.Counter) uint64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return uint64(out.GetCounter().GetValue())
}

func readGauge(g prometheus.Gauge) float64 {
	var out dto.Metric
	if err := g.Write(&out); err != nil {
		return 0
	}
	return out.GetGauge().GetValue()
}
