package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TasksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "messagerecall",
			Name:      "tasks_started_total",
			Help:      "Recall tasks created.",
		},
	)
	UsersProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messagerecall",
			Name:      "users_processed_total",
			Help:      "Task users reaching a terminal state.",
		},
		[]string{"user_state"},
	)
	WorkerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "messagerecall",
			Name:      "worker_errors_total",
			Help:      "Errors hit by the recall worker pipeline.",
		},
	)
)

var registerOnce sync.Once

// Register installs the collectors on the default registry. Safe to call
// from multiple setup paths.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TasksStarted, UsersProcessed, WorkerErrors)
	})
}
