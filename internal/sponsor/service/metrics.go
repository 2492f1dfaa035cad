package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "backoffice",
	Subsystem: "sponsor",
	Name:      "webhook_events_total",
	Help:      "Accepted sponsorship webhook deliveries by action.",
}, []string{"action"})
