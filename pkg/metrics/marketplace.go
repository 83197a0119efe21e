package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels shared by the marketplace counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// MarketplaceMetrics counts order transitions, share reservations and
// notification deliveries.
type MarketplaceMetrics struct {
	transitions   *prometheus.CounterVec
	reservations  *prometheus.CounterVec
	sharesSold    prometheus.Counter
	notifications *prometheus.CounterVec
}

func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	m := &MarketplaceMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Service order transition attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offerings",
			Name:      "reservations_total",
			Help:      "Share reservation attempts by outcome.",
		}, []string{"outcome"}),
		sharesSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offerings",
			Name:      "units_reserved_total",
			Help:      "Share units reserved by successful purchases.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}
	reg.MustRegister(m.transitions, m.reservations, m.sharesSold, m.notifications)
	return m
}

func (m *MarketplaceMetrics) ObserveTransition(operation, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *MarketplaceMetrics) ObserveReservation(outcome string, units int64) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome == OutcomeOK && units > 0 {
		m.sharesSold.Add(float64(units))
	}
}

func (m *MarketplaceMetrics) ObserveNotification(channel, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}
