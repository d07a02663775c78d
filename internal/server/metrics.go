package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agentRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "museflow_agent_runs_total",
		Help: "Workflow runs started, by outcome.",
	}, []string{"outcome"})

	agentStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "museflow_agent_steps_total",
		Help: "Plan steps finished, by status.",
	}, []string{"status"})

	llmStreamsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "museflow_llm_streams_total",
		Help: "Streaming completions served.",
	})
)
