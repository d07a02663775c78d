package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/museworks/museflow/provider"
	"github.com/museworks/museflow/utils"
)

// runState enumerates the workflow nodes. Transitions are strictly
// sequential per run; no node is skipped.
type runState string

const (
	statePlanning   runState = "planning"
	stateSelecting  runState = "selecting"
	stateExecuting  runState = "executing"
	stateFinalizing runState = "finalizing"
	stateDone       runState = "done"
)

// Engine drives one run at a time per thread id. It holds no cross-run
// mutable state; everything lives in the PlanState being threaded through.
type Engine struct {
	Provider      provider.Provider
	Tools         ToolGateway
	Checkpoints   CheckpointStore
	SnapshotDir   string
	MaxToolRounds int

	logger *log.Logger
}

// NewEngine wires an engine. MaxToolRounds bounds the tool-call loop inside
// one step execution.
func NewEngine(pv provider.Provider, tools ToolGateway, ckpt CheckpointStore, snapshotDir string, maxToolRounds int) *Engine {
	if maxToolRounds <= 0 {
		maxToolRounds = 8
	}
	return &Engine{
		Provider:      pv,
		Tools:         tools,
		Checkpoints:   ckpt,
		SnapshotDir:   snapshotDir,
		MaxToolRounds: maxToolRounds,
		logger:        log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
	}
}

// Run executes (or resumes) the workflow for threadID. The returned state is
// always well-formed and terminal: generation failures are absorbed into the
// state content, and only persistence errors are returned as errors.
func (e *Engine) Run(ctx context.Context, initial PlanState, threadID string) (PlanState, error) {
	ps := initial
	st := statePlanning

	if e.Checkpoints != nil {
		saved, ok, err := e.Checkpoints.LoadCheckpoint(ctx, threadID)
		if err != nil {
			return ps, fmt.Errorf("load checkpoint %s: %w", threadID, err)
		}
		if ok {
			ps = saved
			st = resumePoint(ps)
			e.logger.Printf("thread %s: resuming at %s", threadID, st)
		}
	}

	for st != stateDone {
		switch st {
		case statePlanning:
			e.createPlan(ctx, &ps)
			st = stateSelecting
		case stateSelecting:
			identifyStep(&ps)
			if ps.CurrentStepIndex == nil {
				st = stateFinalizing
			} else {
				st = stateExecuting
			}
		case stateExecuting:
			e.executeStep(ctx, &ps)
			st = stateSelecting
		case stateFinalizing:
			e.finalize(ctx, &ps)
			st = stateDone
		}
		if err := e.checkpoint(ctx, threadID, ps, st); err != nil {
			return ps, err
		}
	}

	e.snapshot(threadID, ps)
	return ps, nil
}

// resumePoint decides where a restored state re-enters the machine. A step
// left in_progress by a crash is re-selected by the SELECTING scan, giving
// at-least-once semantics for interrupted steps.
func resumePoint(ps PlanState) runState {
	if ps.FinalSummary != nil {
		return stateDone
	}
	if len(ps.PlanSteps) > 0 {
		return stateSelecting
	}
	return statePlanning
}

// createPlan asks the model for a plan (no tools) and parses it. A gateway
// failure leaves PlanSteps empty with a diagnostic in the conversation; the
// run still reaches a terminal state.
func (e *Engine) createPlan(ctx context.Context, ps *PlanState) {
	prompt := fmt.Sprintf(planningPrompt, ps.InitialRequest)
	reply, err := e.Provider.Generate(ctx, provider.GenerateRequest{
		History: providerHistory(ps.Conversation),
		Content: prompt,
	})
	if err != nil {
		e.logger.Printf("plan creation failed: %v", err)
		ps.Conversation = append(ps.Conversation, Message{Role: "system", Content: fmt.Sprintf("plan creation failed: %v", err)})
		return
	}
	ps.Conversation = append(ps.Conversation,
		Message{Role: "user", Content: prompt},
		Message{Role: "assistant", Content: reply.Text},
	)
	ps.PlanSteps = ParsePlan(reply.Text, ps.InitialRequest)
	e.logger.Printf("plan created: %d step(s)", len(ps.PlanSteps))
}

// identifyStep selects the first step that is not_started or in_progress.
// This ordered scan is the sole scheduling mechanism. With nothing pending
// it sets CurrentStepIndex to nil and mutates nothing else, so repeated
// calls at exhaustion are idempotent.
func identifyStep(ps *PlanState) {
	for i := range ps.PlanSteps {
		s := ps.PlanSteps[i].Status
		if s == StatusNotStarted || s == StatusInProgress {
			ps.PlanSteps[i].Status = StatusInProgress
			idx := i
			ps.CurrentStepIndex = &idx
			return
		}
	}
	ps.CurrentStepIndex = nil
}

// executeStep performs the selected step with a step-scoped tool session.
// Any failure marks the step blocked and the run continues; one blocked
// step never halts the plan. A step_results entry is appended either way.
func (e *Engine) executeStep(ctx context.Context, ps *PlanState) {
	idx := *ps.CurrentStepIndex
	step := &ps.PlanSteps[idx]

	outcome, err := e.runStepSession(ctx, ps, step)
	if err != nil {
		e.logger.Printf("step %d blocked: %v", step.Sequence, err)
		step.Trace = append(step.Trace, Message{Role: "system", Content: fmt.Sprintf("step execution failed: %v", err)})
		step.Result += fmt.Sprintf("error: %v", err)
		step.Status = StatusBlocked
		outcome = fmt.Sprintf("failed: %v", err)
	} else {
		step.Status = StatusCompleted
		e.logger.Printf("step %d completed: %s", step.Sequence, logLine(outcome))
	}
	// step_results keeps the full outcome text; finalization summarizes
	// from these entries, so the facts a step gathered must survive here.
	ps.StepResults = append(ps.StepResults, fmt.Sprintf("Step %d (%s): %s", step.Sequence, step.Task, outcome))
}

// runStepSession opens a tool session, drives the model's tool-call loop,
// and tears the session down whatever happens.
func (e *Engine) runStepSession(ctx context.Context, ps *PlanState, step *PlanStep) (string, error) {
	sess, err := e.Tools.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open tool session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	tools, err := sess.Tools(ctx)
	if err != nil {
		return "", fmt.Errorf("list tools: %w", err)
	}
	specs := make([]provider.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, provider.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}

	prompt := fmt.Sprintf(executionPrompt, FormatPlanStatus(ps.PlanSteps), step.Task, step.Action)
	history := []provider.Message{}
	content := prompt
	step.Trace = append(step.Trace, Message{Role: "user", Content: prompt})
	ps.Conversation = append(ps.Conversation, Message{Role: "user", Content: prompt})

	for round := 0; round < e.MaxToolRounds; round++ {
		reply, err := e.Provider.Generate(ctx, provider.GenerateRequest{
			History: history,
			Content: content,
			Tools:   specs,
		})
		if err != nil {
			return "", fmt.Errorf("generate: %w", err)
		}

		if len(reply.ToolCalls) == 0 {
			step.Trace = append(step.Trace, Message{Role: "assistant", Content: reply.Text})
			ps.Conversation = append(ps.Conversation, Message{Role: "assistant", Content: reply.Text})
			step.Result += reply.Text
			outcome := strings.TrimSpace(reply.Text)
			if outcome == "" {
				outcome = "completed"
			}
			return outcome, nil
		}

		history = append(history, provider.Message{Role: "user", Content: content})
		history = append(history, provider.Message{Role: "assistant", Content: reply.Text, ToolCalls: reply.ToolCalls})
		content = ""
		for _, tc := range reply.ToolCalls {
			step.Trace = append(step.Trace, Message{Role: "assistant", Content: fmt.Sprintf("tool call %s(%s)", tc.Name, tc.Arguments)})

			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				args = map[string]any{}
			}
			out, callErr := sess.Call(ctx, tc.Name, args)
			if callErr != nil {
				out = fmt.Sprintf("tool error: %v", callErr)
			}
			step.Trace = append(step.Trace, Message{Role: "tool", Content: out})
			history = append(history, provider.Message{Role: "tool", Content: out, ToolCallID: tc.ID})
		}
	}

	return "", fmt.Errorf("tool loop exceeded %d rounds", e.MaxToolRounds)
}

// finalize produces the structured summary (no tools). It always sets
// FinalSummary, falling back to an error placeholder, and sets it at most
// once per run.
func (e *Engine) finalize(ctx context.Context, ps *PlanState) {
	if ps.FinalSummary != nil {
		return
	}
	prompt := fmt.Sprintf(summarizationPrompt, ps.InitialRequest, strings.Join(ps.StepResults, "\n"))
	reply, err := e.Provider.Generate(ctx, provider.GenerateRequest{Content: prompt})
	if err != nil {
		e.logger.Printf("finalize failed: %v", err)
		ps.FinalSummary = &FinalSummary{
			TextSummary: fmt.Sprintf("summary generation failed: %v", err),
			References:  []Reference{},
		}
		return
	}
	ps.Conversation = append(ps.Conversation,
		Message{Role: "user", Content: prompt},
		Message{Role: "assistant", Content: reply.Text},
	)
	fs := ParseSummary(reply.Text)
	ps.FinalSummary = &fs
}

func (e *Engine) checkpoint(ctx context.Context, threadID string, ps PlanState, st runState) error {
	if e.Checkpoints == nil {
		return nil
	}
	if err := e.Checkpoints.SaveCheckpoint(ctx, threadID, ps, string(st)); err != nil {
		e.logger.Printf("checkpoint %s failed: %v", threadID, err)
		return fmt.Errorf("save checkpoint %s: %w", threadID, err)
	}
	return nil
}

// snapshot writes a JSON copy of the final state for audit. Best effort;
// failures are logged only.
func (e *Engine) snapshot(threadID string, ps PlanState) {
	if e.SnapshotDir == "" {
		return
	}
	if err := os.MkdirAll(e.SnapshotDir, 0o755); err != nil {
		e.logger.Printf("snapshot dir: %v", err)
		return
	}
	b, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		e.logger.Printf("snapshot marshal: %v", err)
		return
	}
	path := filepath.Join(e.SnapshotDir, threadID+".json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		e.logger.Printf("snapshot write: %v", err)
	}
}

// logLine compresses step output to a single short line for the log.
func logLine(text string) string {
	t := strings.TrimSpace(text)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[:i]
	}
	return utils.Truncate(t, 200)
}

// providerHistory converts stored conversation turns into model history.
func providerHistory(msgs []Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
