package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	annotationPipeline = "annotation_pipeline"

	messagesProcessedTotal = "messages_processed_total"
	messagesDeadTotal      = "messages_dead_lettered_total"
	jobsDispatchedTotal    = "jobs_dispatched_total"
	jobsCompletedTotal     = "jobs_completed_total"
	jobsArchivedTotal      = "jobs_archived_total"
	jobsRestoredTotal      = "jobs_restored_total"

	// Labels
	workerLabel  = "worker"
	outcomeLabel = "outcome"
	queueLabel   = "queue"
)

// Message handling outcomes.
const (
	OutcomeHandled   = "handled"
	OutcomeRetryable = "retryable"
	OutcomeTerminal  = "terminal"
)

var messagesProcessedLabels = []string{
	workerLabel,
	outcomeLabel,
}

/**
* Metrics definition
**/
var messagesProcessedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: annotationPipeline,
		Name:      messagesProcessedTotal,
		Help:      "number of channel messages processed, by worker and outcome",
	},
	messagesProcessedLabels,
)

var messagesDeadTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: annotationPipeline,
		Name:      messagesDeadTotal,
		Help:      "number of messages diverted to a dead-letter channel",
	},
	[]string{queueLabel},
)

var jobsDispatchedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: annotationPipeline,
		Name:      jobsDispatchedTotal,
		Help:      "number of annotation processes launched",
	},
)

var jobsCompletedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: annotationPipeline,
		Name:      jobsCompletedTotal,
		Help:      "number of jobs marked COMPLETED",
	},
)

var jobsArchivedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: annotationPipeline,
		Name:      jobsArchivedTotal,
		Help:      "number of results moved to cold storage",
	},
)

var jobsRestoredTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: annotationPipeline,
		Name:      jobsRestoredTotal,
		Help:      "number of results restored to hot storage",
	},
)

func IncreaseMessagesProcessed(worker, outcome string) {
	messagesProcessedTotalMetric.With(prometheus.Labels{
		workerLabel:  worker,
		outcomeLabel: outcome,
	}).Inc()
}

func IncreaseMessagesDeadLettered(queue string, count int) {
	messagesDeadTotalMetric.With(prometheus.Labels{queueLabel: queue}).Add(float64(count))
}

func IncreaseJobsDispatched() {
	jobsDispatchedTotalMetric.Inc()
}

func IncreaseJobsCompleted() {
	jobsCompletedTotalMetric.Inc()
}

func IncreaseJobsArchived() {
	jobsArchivedTotalMetric.Inc()
}

func IncreaseJobsRestored() {
	jobsRestoredTotalMetric.Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(messagesProcessedTotalMetric)
	prometheus.MustRegister(messagesDeadTotalMetric)
	prometheus.MustRegister(jobsDispatchedTotalMetric)
	prometheus.MustRegister(jobsCompletedTotalMetric)
	prometheus.MustRegister(jobsArchivedTotalMetric)
	prometheus.MustRegister(jobsRestoredTotalMetric)
}
