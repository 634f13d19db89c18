package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome constants.
const (
	outcomeCommit   = "commit"
	outcomeRollback = "rollback"
)

var (
	// stepCallsTotal counts step invocations by the control they returned
	// ("error" when the step failed).
	stepCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicstates_step_calls_total",
		Help: "Total number of state step invocations by machine, state, step and resulting control",
	}, []string{"machine", "state", "step", "control"})

	// transactionsTotal counts step transactions by weight and outcome (commit/rollback).
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicstates_transactions_total",
		Help: "Total number of critical data transactions opened around steps, by weight and outcome",
	}, []string{"machine", "weight", "outcome"})

	// visitsTotal counts state visits.
	visitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicstates_visits_total",
		Help: "Total number of state visits by machine and state",
	}, []string{"machine", "state"})

	// transitionsTotal counts ExitState transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicstates_transitions_total",
		Help: "Total number of state transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// waitPollsTotal counts CommittedWait polls that returned RepeatWait.
	waitPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicstates_wait_polls_total",
		Help: "Total number of unsatisfied CommittedWait polls by machine and state",
	}, []string{"machine", "state"})

	// stepDuration tracks how long individual step calls take, transaction included.
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logicstates_step_duration_seconds",
		Help:    "Duration of step execution including its transaction, by machine and step",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"machine", "step"})
)
