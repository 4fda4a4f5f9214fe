package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Save outcomes recorded by LedgerMetrics.
const (
	SaveResultOK       = "ok"
	SaveResultInvalid  = "invalid"
	SaveResultConflict = "conflict"
	SaveResultError    = "error"
)

// LedgerMetrics tracks bulk item saves for quotes and parts lists.
type LedgerMetrics struct {
	saves *prometheus.CounterVec
	items *prometheus.HistogramVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "saves_total",
		Help:      "Bulk line item saves by owner and result.",
	}, []string{"owner", "result"})
	items := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "save_items",
		Help:      "Number of line items per accepted save.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"owner"})
	reg.MustRegister(saves, items)
	return &LedgerMetrics{saves: saves, items: items}
}

// ObserveSave counts a save attempt. itemCount is only recorded for ok saves.
func (m *LedgerMetrics) ObserveSave(owner, result string, itemCount int) {
	if m == nil || m.saves == nil {
		return
	}
	owner = normalizeLabel(owner)
	m.saves.WithLabelValues(owner, normalizeLabel(result)).Inc()
	if result == SaveResultOK {
		m.items.WithLabelValues(owner).Observe(float64(itemCount))
	}
}
