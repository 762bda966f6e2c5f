// Package metrics exposes the agents' Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_cycles_total", Help: "Decision cycles started"},
		[]string{"strategy"},
	)
	CycleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_cycle_errors_total", Help: "Cycles that ended with an error or panic"},
		[]string{"strategy"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_orders_total", Help: "Orders accepted by the exchange"},
		[]string{"strategy", "side", "type"},
	)
	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_order_failures_total", Help: "Order submissions that failed"},
		[]string{"strategy"},
	)
	IntentsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_intents_rejected_total", Help: "Intents dropped before submission"},
		[]string{"strategy", "reason"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_fills_total", Help: "Trades seen on the tape involving the agent"},
		[]string{"strategy"},
	)
	SentimentScore = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "agent_sentiment_score", Help: "Last headline sentiment score"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleErrorsTotal,
		OrdersTotal,
		OrderFailuresTotal,
		IntentsRejectedTotal,
		FillsTotal,
		SentimentScore,
	)
}

// Serve starts the /metrics endpoint in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
