package executor

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for run results.
const (
	resultOK        = "ok"
	resultFailed    = "failed"
	resultTimeout   = "timeout"
	resultStartFail = "start_error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcbot_executor_runs_total",
			Help: "Total number of simulation executable runs by result.",
		},
		[]string{"result"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simcbot_executor_run_seconds",
			Help:    "Wall-clock duration of simulation executable runs, in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300, 600},
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)

	for _, r := range []string{resultOK, resultFailed, resultTimeout, resultStartFail} {
		runsTotal.WithLabelValues(r)
	}
}
