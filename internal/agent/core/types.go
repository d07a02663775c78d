// Package core implements the planning/search workflow engine: plan
// creation, step-by-step execution with tool sessions, and structured
// summarization, with checkpointed state so a run can resume after a
// restart.
package core

import "context"

// Message is one conversation turn, kept for trace/audit and for building
// model history. Serialized into checkpoints.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StepStatus is the lifecycle of one plan step. It never reverts.
type StepStatus string

const (
	StatusNotStarted StepStatus = "not_started"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusBlocked    StepStatus = "blocked"
)

// PlanStep is one unit of work in a run's plan.
type PlanStep struct {
	Sequence int        `json:"sequence"`
	Task     string     `json:"task"`
	Action   string     `json:"action"`
	Status   StepStatus `json:"status"`
	Trace    []Message  `json:"trace,omitempty"`
	Result   string     `json:"result,omitempty"`
}

// Reference is one citation in the final summary. Duplicates are allowed;
// they pass through from the model untouched.
type Reference struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Type        string `json:"type"`
}

// FinalSummary is the structured result of a finished run.
type FinalSummary struct {
	TextSummary string      `json:"text_summary"`
	References  []Reference `json:"references"`
}

// PlanState is the full persisted state of one run. The engine owns it
// exclusively for the run's lifetime; nothing else holds a reference into
// PlanSteps.
type PlanState struct {
	InitialRequest   string        `json:"initial_request"`
	PlanSteps        []PlanStep    `json:"plan_steps"`
	CurrentStepIndex *int          `json:"current_step_index,omitempty"`
	StepResults      []string      `json:"step_results"`
	FinalSummary     *FinalSummary `json:"final_summary,omitempty"`
	Conversation     []Message     `json:"conversation"`
}

// Tool describes one callable capability exposed by a tool session.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolSession is a bounded-lifetime binding of external capabilities. The
// engine opens one per step execution and always closes it afterward.
type ToolSession interface {
	Tools(ctx context.Context) ([]Tool, error)
	Call(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// ToolGateway opens tool sessions.
type ToolGateway interface {
	Open(ctx context.Context) (ToolSession, error)
}

// CheckpointStore persists run state keyed by a continuation (thread) id.
// Any durable keyed store works; the engine only reads and writes whole
// states.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, threadID string, state PlanState, status string) error
	LoadCheckpoint(ctx context.Context, threadID string) (PlanState, bool, error)
}
