package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"leadrelay/internal/models"
)

var (
	quoteRowsDesc = prometheus.NewDesc(
		"leadrelay_quotes_stored",
		"Stored quote submissions by table and status",
		[]string{"table", "status"},
		nil,
	)

	quoteSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_quote_submissions_total",
			Help: "Quote submissions handled by the relay by outcome",
		},
		[]string{"quote_type", "outcome"},
	)

	signalsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_signals_total",
			Help: "Visitor signals classified by readiness label",
		},
		[]string{"label"},
	)

	feedFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_feed_fetches_total",
			Help: "RSS proxy requests by result",
		},
		[]string{"result"},
	)
)

// QuoteCounter reports stored submission counts.
type QuoteCounter interface {
	CountQuotesByStatus(ctx context.Context, tables []string) ([]models.TableCount, error)
}

// QuoteCollector is a custom Prometheus collector that reads stored quote
// counts from the database on each scrape.
type QuoteCollector struct {
	db     QuoteCounter
	tables []string
}

// Describe sends the metric descriptor to the channel.
func (c *QuoteCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- quoteRowsDesc
}

// Collect queries the database for per-table counts and emits them as gauges.
func (c *QuoteCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.db.CountQuotesByStatus(ctx, c.tables)
	if err != nil {
		slog.Error("failed to collect quote metrics", "error", err)
		return
	}
	for _, tc := range counts {
		ch <- prometheus.MustNewConstMetric(
			quoteRowsDesc,
			prometheus.GaugeValue,
			float64(tc.Count),
			tc.Table,
			tc.Status,
		)
	}
}

var (
	registerOnce sync.Once
	countersOnce sync.Once
)

// Init registers the relay counters and, when database is non-nil, the
// stored quote collector for the given tables.
// Must be called once at startup.
func Init(database QuoteCounter, tables []string) {
	registerCounters()
	registerOnce.Do(func() {
		if database != nil {
			prometheus.MustRegister(&QuoteCollector{db: database, tables: tables})
		}
	})
}

func registerCounters() {
	countersOnce.Do(func() {
		prometheus.MustRegister(quoteSubmissions, signalsClassified, feedFetches)
	})
}

// RecordQuoteSubmission counts one relay outcome.
func RecordQuoteSubmission(quoteType, outcome string) {
	if quoteType == "" {
		quoteType = "unknown"
	}
	quoteSubmissions.WithLabelValues(quoteType, outcome).Inc()
}

// RecordSignal counts one classified visitor signal.
func RecordSignal(label string) {
	signalsClassified.WithLabelValues(label).Inc()
}

// RecordFeedFetch counts one RSS proxy request.
func RecordFeedFetch(result string) {
	feedFetches.WithLabelValues(result).Inc()
}
