package queue

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/simcbot/internal/model"
)

var (
	queuePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simcbot_queue_pending",
		Help: "Number of jobs waiting to run.",
	})

	queueExecuting = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simcbot_queue_executing",
		Help: "Number of jobs currently executing (0 or 1).",
	})

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcbot_jobs_total",
			Help: "Total number of finished jobs by mode and terminal status.",
		},
		[]string{"mode", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simcbot_job_duration_seconds",
			Help:    "Wall-clock time from dispatch to delivery.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(queuePending, queueExecuting, jobsTotal, jobDuration)

	for _, mode := range []model.Mode{model.ModeDPS, model.ModeScaling} {
		for _, status := range []string{model.StatusCompleted, model.StatusFailed, model.StatusDropped} {
			jobsTotal.WithLabelValues(string(mode), status)
		}
		jobDuration.WithLabelValues(string(mode))
	}
}
