package observability

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts ledger writes, opening stock resolutions and
// transfer mirror inconsistencies, and tracks the balances cache version seen
// by this process. A nil *LedgerMetrics records nothing.
type LedgerMetrics struct {
	entries      *prometheus.CounterVec
	openings     *prometheus.CounterVec
	inconsistent *prometheus.CounterVec
	cacheVersion prometheus.Gauge
}

// NewLedgerMetrics registers the ledger collectors against registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedledger_entries_written_total",
		Help: "Ledger entries written by transaction kind.",
	}, []string{"kind"})
	openings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedledger_opening_resolutions_total",
		Help: "Opening stock resolutions by resulting state.",
	}, []string{"state"})
	inconsistent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedledger_transfer_mirror_inconsistencies_total",
		Help: "Transfers whose mirror entry was missing or orphaned.",
	}, []string{"reason"})
	cacheVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feedledger_balances_cache_version",
		Help: "Last balances cache version announced on the invalidation channel.",
	})
	registerer.MustRegister(entries, openings, inconsistent, cacheVersion)
	return &LedgerMetrics{entries: entries, openings: openings, inconsistent: inconsistent, cacheVersion: cacheVersion}
}

func (m *LedgerMetrics) EntryWritten(kind string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(kind).Inc()
}

func (m *LedgerMetrics) OpeningCarried(state string) {
	if m == nil {
		return
	}
	m.openings.WithLabelValues(state).Inc()
}

func (m *LedgerMetrics) MirrorInconsistent(reason string) {
	if m == nil {
		return
	}
	m.inconsistent.WithLabelValues(reason).Inc()
}

// CacheVersion records the latest balances cache version.
func (m *LedgerMetrics) CacheVersion(version int64) {
	if m == nil {
		return
	}
	m.cacheVersion.Set(float64(version))
}
