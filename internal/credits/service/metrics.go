package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var creditsGranted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "backoffice",
	Subsystem: "credits",
	Name:      "granted_total",
	Help:      "Credits granted through additions. Deduplicated replays do not count.",
})
