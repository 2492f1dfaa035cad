package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Scheduler job executions by job name.",
	}, []string{"job"})
	jobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Subsystem: "scheduler",
		Name:      "job_errors_total",
		Help:      "Scheduler job executions that failed, by job name.",
	}, []string{"job"})
)
