package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	waitingUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_waiting_users",
			Help: "Current waiting queue depth per event",
		},
		[]string{"event_id"},
	)

	activeUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_active_users",
			Help: "Current active slot occupancy per event",
		},
		[]string{"event_id"},
	)

	remainingStock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_remaining_stock",
			Help: "Live remaining stock per ticket type",
		},
		[]string{"event_id", "ticket_type_id"},
	)

	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_operations_total",
			Help: "Ticketing operations by outcome",
		},
		[]string{"operation", "event_id", "status"},
	)

	promotedUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_promoted_users_total",
			Help: "Users promoted from waiting to active",
		},
		[]string{"event_id"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitroom_sweep_duration_seconds",
			Help:    "Duration of reconciliation sweeps",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"sweep"},
	)
)

// Monitor is a thin facade so services do not touch collectors directly.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) SetQueueDepths(eventID string, waiting, active int64) {
	waitingUsers.WithLabelValues(eventID).Set(float64(waiting))
	activeUsers.WithLabelValues(eventID).Set(float64(active))
}

func (m *Monitor) SetRemainingStock(eventID, ticketTypeID string, remaining int64) {
	remainingStock.WithLabelValues(eventID, ticketTypeID).Set(float64(remaining))
}

func (m *Monitor) TrackOperation(operation, eventID, opStatus string) {
	operations.WithLabelValues(operation, eventID, opStatus).Inc()
}

func (m *Monitor) TrackPromoted(eventID string, count int) {
	promotedUsers.WithLabelValues(eventID).Add(float64(count))
}

func (m *Monitor) TrackSweep(sweep string, d time.Duration) {
	sweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
}
