package delivery

import "github.com/prometheus/client_golang/prometheus"

var deliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "simcbot_deliveries_total",
		Help: "Total number of delivery attempts by message kind and outcome.",
	},
	[]string{"kind", "status"},
)

func init() {
	prometheus.MustRegister(deliveriesTotal)

	for _, kind := range []string{TypeReport, TypeText} {
		deliveriesTotal.WithLabelValues(kind, "ok")
		deliveriesTotal.WithLabelValues(kind, "error")
	}
}

func observe(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	deliveriesTotal.WithLabelValues(kind, status).Inc()
}
