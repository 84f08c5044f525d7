package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_generated_total",
		Help: "Total number of scheduled reminder rows created.",
	})

	RemindersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_processed_total",
		Help: "Total number of due reminders processed, by outcome.",
	}, []string{"status"})

	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_deliveries_total",
		Help: "Per-recipient delivery attempts, by channel and outcome.",
	}, []string{"channel", "status"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_batch_duration_seconds",
		Help:    "Duration of one process-reminders batch.",
		Buckets: prometheus.DefBuckets,
	})
)
