package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
)

// LedgerMetrics counts ledger outcomes. A nil *LedgerMetrics records nothing.
type LedgerMetrics struct {
	salesCreated        *prometheus.CounterVec
	salesDeleted        prometheus.Counter
	insufficientStock   prometheus.Counter
	imageDeleteFailures prometheus.Counter
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		salesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "sales_created_total",
			Help:      "Number of sales recorded, by channel.",
		}, []string{"channel"}),
		salesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "sales_deleted_total",
			Help:      "Number of sales deleted.",
		}),
		insufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "insufficient_stock_total",
			Help:      "Number of sales rejected because the product had no stock left.",
		}),
		imageDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "image_delete_failures_total",
			Help:      "Number of best-effort image deletions that failed.",
		}),
	}

	reg.MustRegister(m.salesCreated, m.salesDeleted, m.insufficientStock, m.imageDeleteFailures)

	return m
}

func (m *LedgerMetrics) saleCreated(channel model.Channel) {
	if m == nil {
		return
	}
	m.salesCreated.WithLabelValues(string(channel)).Inc()
}

func (m *LedgerMetrics) saleDeleted() {
	if m == nil {
		return
	}
	m.salesDeleted.Inc()
}

func (m *LedgerMetrics) stockRejected() {
	if m == nil {
		return
	}
	m.insufficientStock.Inc()
}

func (m *LedgerMetrics) imageDeleteFailed() {
	if m == nil {
		return
	}
	m.imageDeleteFailures.Inc()
}
