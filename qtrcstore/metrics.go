package qtrcstore

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a store's counters and budget as Prometheus metrics. It
// reads the live values on every scrape, so it has no state of its own.
type Collector struct {
	st *Store

	traceErrors     *prometheus.Desc
	sessionsEnded   *prometheus.Desc
	recordsWritten  *prometheus.Desc
	recordsDropped  *prometheus.Desc
	queueDrops      *prometheus.Desc
	budgetRemaining *prometheus.Desc
	retained        *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector over the given store.
func NewCollector(st *Store) *Collector {
	return &Collector{
		st: st,

		traceErrors: prometheus.NewDesc(
			"qtrc_trace_errors_total",
			"Sessions whose parameter rendering failed and whose records were dropped.",
			nil, nil,
		),
		sessionsEnded: prometheus.NewDesc(
			"qtrc_sessions_ended_total",
			"Sessions that completed their lifecycle.",
			nil, nil,
		),
		recordsWritten: prometheus.NewDesc(
			"qtrc_records_written_total",
			"Record buffers accepted for persistence.",
			nil, nil,
		),
		recordsDropped: prometheus.NewDesc(
			"qtrc_records_dropped_total",
			"Record buffers discarded without persistence.",
			nil, nil,
		),
		queueDrops: prometheus.NewDesc(
			"qtrc_queue_drops_total",
			"Record buffers refused because the write queue was full.",
			nil, nil,
		),
		budgetRemaining: prometheus.NewDesc(
			"qtrc_budget_remaining",
			"Remaining units of the shared record budget.",
			nil, nil,
		),
		retained: prometheus.NewDesc(
			"qtrc_records_retained",
			"Session records currently retained in memory.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.traceErrors
	ch <- c.sessionsEnded
	ch <- c.recordsWritten
	ch <- c.recordsDropped
	ch <- c.queueDrops
	ch <- c.budgetRemaining
	ch <- c.retained
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.st.Stats()

	ch <- prometheus.MustNewConstMetric(c.traceErrors, prometheus.CounterValue, float64(stats.TraceErrors.Load()))
	ch <- prometheus.MustNewConstMetric(c.sessionsEnded, prometheus.CounterValue, float64(stats.SessionsEnded.Load()))
	ch <- prometheus.MustNewConstMetric(c.recordsWritten, prometheus.CounterValue, float64(stats.RecordsWritten.Load()))
	ch <- prometheus.MustNewConstMetric(c.recordsDropped, prometheus.CounterValue, float64(stats.RecordsDropped.Load()))
	ch <- prometheus.MustNewConstMetric(c.queueDrops, prometheus.CounterValue, float64(stats.QueueDrops.Load()))
	ch <- prometheus.MustNewConstMetric(c.budgetRemaining, prometheus.GaugeValue, float64(c.st.Budget().Remaining()))
	ch <- prometheus.MustNewConstMetric(c.retained, prometheus.GaugeValue, float64(c.st.WrittenCount()))
}
