package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvsign",
		Subsystem: "bridge",
		Name:      "exchanges_total",
		Help:      "Completed exchanges by instruction and status word.",
	}, []string{"ins", "status"})

	// An exchange can park on user review, so the buckets reach into
	// minutes.
	exchangeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mvsign",
		Subsystem: "bridge",
		Name:      "exchange_seconds",
		Help:      "Wall time of one exchange.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"ins"})

	signOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvsign",
		Subsystem: "bridge",
		Name:      "signing_outcomes_total",
		Help:      "Terminal signing outcomes written to the audit trail.",
	}, []string{"outcome"})
)
