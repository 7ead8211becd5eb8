package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the dues lifecycle. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	DuesGenerated     prometheus.Counter
	PaymentsRecorded  prometheus.Counter
	PaymentsReversed  prometheus.Counter
	PaymentConflicts  prometheus.Counter
	ReceiptsRejected  prometheus.Counter
	RemindersSent     *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New registers all metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DuesGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "acp_dues_generated_total",
			Help: "Total number of dues created by period generation",
		}),
		PaymentsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "acp_dues_payments_recorded_total",
			Help: "Total number of dues marked paid",
		}),
		PaymentsReversed: f.NewCounter(prometheus.CounterOpts{
			Name: "acp_dues_payments_reversed_total",
			Help: "Total number of payments reversed",
		}),
		PaymentConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "acp_dues_payment_conflicts_total",
			Help: "Pay attempts rejected because the due was already paid",
		}),
		ReceiptsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "acp_dues_receipts_rejected_total",
			Help: "Receipts dropped because of a disallowed extension",
		}),
		RemindersSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acp_dues_reminders_total",
			Help: "Reminder attempts by channel and result",
		}, []string{"channel", "result"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acp_dues_operation_duration_seconds",
			Help:    "Duration of dues operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) AddGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuesGenerated.Add(float64(n))
}

func (m *Metrics) IncPaid() {
	if m != nil {
		m.PaymentsRecorded.Inc()
	}
}

func (m *Metrics) IncReversed() {
	if m != nil {
		m.PaymentsReversed.Inc()
	}
}

func (m *Metrics) IncConflict() {
	if m != nil {
		m.PaymentConflicts.Inc()
	}
}

func (m *Metrics) IncReceiptRejected() {
	if m != nil {
		m.ReceiptsRejected.Inc()
	}
}

func (m *Metrics) ObserveReminder(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "sent"
	}
	m.RemindersSent.WithLabelValues(channel, result).Inc()
}

// Observe records the duration of op. Call with time.Now() taken at the start.
func (m *Metrics) Observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
