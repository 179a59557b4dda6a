package insight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// turnsTotal counts answered turns.
	// Labels: intent, follow_up (true, false)
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txn_insights",
		Subsystem: "conversation",
		Name:      "turns_total",
		Help:      "Answered conversation turns",
	}, []string{"intent", "follow_up"})

	// turnDuration measures ProcessTurn end to end, rendering included.
	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "txn_insights",
		Subsystem: "conversation",
		Name:      "turn_duration_seconds",
		Help:      "Time to answer one turn in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

// RegisterSessionGauge exposes the number of live sessions reported by count.
// Call it once per process.
func RegisterSessionGauge(count func() int) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "txn_insights",
		Subsystem: "conversation",
		Name:      "sessions_active",
		Help:      "Sessions currently held in memory",
	}, func() float64 {
		return float64(count())
	})
}
