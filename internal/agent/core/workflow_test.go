package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/museworks/museflow/provider"
)

type genResult struct {
	reply provider.Reply
	err   error
}

// scriptedLLM returns canned replies in order.
type scriptedLLM struct {
	script []genResult
	calls  []provider.GenerateRequest
}

func (s *scriptedLLM) Generate(_ context.Context, req provider.GenerateRequest) (provider.Reply, error) {
	s.calls = append(s.calls, req)
	if len(s.script) == 0 {
		return provider.Reply{}, errors.New("script exhausted")
	}
	r := s.script[0]
	s.script = s.script[1:]
	return r.reply, r.err
}

func (s *scriptedLLM) GenerateStream(context.Context, provider.GenerateRequest) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) CreateEmbedding(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not scripted")
}

type stubSession struct {
	toolOut   string
	toolCalls []string
	closed    bool
}

func (s *stubSession) Tools(context.Context) ([]Tool, error) {
	return []Tool{{Name: "web.search", Description: "search"}}, nil
}

func (s *stubSession) Call(_ context.Context, name string, _ map[string]any) (string, error) {
	s.toolCalls = append(s.toolCalls, name)
	return s.toolOut, nil
}

func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

type stubGateway struct {
	sessions []*stubSession
	openErr  error
}

func (g *stubGateway) Open(context.Context) (ToolSession, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	sess := &stubSession{toolOut: `{"results":[]}`}
	g.sessions = append(g.sessions, sess)
	return sess, nil
}

type memCheckpoints struct {
	states map[string]PlanState
	saves  int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{states: map[string]PlanState{}}
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, threadID string, state PlanState, _ string) error {
	m.states[threadID] = state
	m.saves++
	return nil
}

func (m *memCheckpoints) LoadCheckpoint(_ context.Context, threadID string) (PlanState, bool, error) {
	st, ok := m.states[threadID]
	return st, ok, nil
}

func planText(n int) string {
	var b strings.Builder
	b.WriteString("```json\n[")
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"plan_sequence":%d,"task":"task %d","action":["look it up"]}`, i, i)
	}
	b.WriteString("]\n```")
	return b.String()
}

const summaryText = "All findings combined\nReferences\n```json\n[{\"title\":\"X\",\"description\":\"Y\",\"url\":\"Z\",\"type\":\"webpage\"}]\n```"

func TestRunHappyPath(t *testing.T) {
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: planText(2)}},
		{reply: provider.Reply{Text: "found thing one"}},
		{reply: provider.Reply{Text: "found thing two"}},
		{reply: provider.Reply{Text: summaryText}},
	}}
	gw := &stubGateway{}
	ck := newMemCheckpoints()
	e := NewEngine(llm, gw, ck, "", 4)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "research mascots"}, "t1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.PlanSteps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(out.PlanSteps))
	}
	for i, s := range out.PlanSteps {
		if s.Status != StatusCompleted {
			t.Fatalf("step %d status = %q", i, s.Status)
		}
		if s.Result == "" {
			t.Fatalf("step %d has empty result", i)
		}
	}
	if out.CurrentStepIndex != nil {
		t.Fatalf("current_step_index should be nil at the end")
	}
	if len(out.StepResults) != 2 || !strings.HasPrefix(out.StepResults[0], "Step 1 (task 1)") {
		t.Fatalf("step_results = %v", out.StepResults)
	}
	if out.FinalSummary == nil || out.FinalSummary.TextSummary != "All findings combined" {
		t.Fatalf("final_summary = %+v", out.FinalSummary)
	}
	if len(out.FinalSummary.References) != 1 || out.FinalSummary.References[0].Title != "X" {
		t.Fatalf("references = %+v", out.FinalSummary.References)
	}
	if len(gw.sessions) != 2 {
		t.Fatalf("expected one tool session per step, got %d", len(gw.sessions))
	}
	for i, sess := range gw.sessions {
		if !sess.closed {
			t.Fatalf("session %d not closed", i)
		}
	}
	if ck.saves == 0 {
		t.Fatalf("expected checkpoints to be written")
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: planText(2)}},
		{err: errors.New("rate limited")},
		{reply: provider.Reply{Text: "second step fine"}},
		{reply: provider.Reply{Text: summaryText}},
	}}
	gw := &stubGateway{}
	e := NewEngine(llm, gw, newMemCheckpoints(), "", 4)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "req"}, "t2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.PlanSteps[0].Status != StatusBlocked {
		t.Fatalf("step 1 status = %q", out.PlanSteps[0].Status)
	}
	if out.PlanSteps[0].Result == "" {
		t.Fatalf("blocked step should carry an error result")
	}
	if out.PlanSteps[1].Status != StatusCompleted {
		t.Fatalf("step 2 status = %q", out.PlanSteps[1].Status)
	}
	if !strings.HasPrefix(out.StepResults[0], "Step 1 (") {
		t.Fatalf("step_results[0] = %q", out.StepResults[0])
	}
	if out.FinalSummary == nil {
		t.Fatalf("run did not reach finalize")
	}
}

func TestRunToolCallLoop(t *testing.T) {
	toolReply := provider.Reply{ToolCalls: []provider.ToolCall{
		{ID: "c1", Name: "web.search", Arguments: `{"query":"mascots"}`},
	}}
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: planText(1)}},
		{reply: toolReply},
		{reply: provider.Reply{Text: "wrapped up with tool output"}},
		{reply: provider.Reply{Text: "summary, no refs"}},
	}}
	gw := &stubGateway{}
	e := NewEngine(llm, gw, newMemCheckpoints(), "", 4)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "req"}, "t3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(gw.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(gw.sessions))
	}
	if got := gw.sessions[0].toolCalls; len(got) != 1 || got[0] != "web.search" {
		t.Fatalf("tool calls = %v", got)
	}
	if out.PlanSteps[0].Status != StatusCompleted {
		t.Fatalf("status = %q", out.PlanSteps[0].Status)
	}
	if !strings.Contains(out.PlanSteps[0].Result, "wrapped up") {
		t.Fatalf("result = %q", out.PlanSteps[0].Result)
	}
}

func TestRunStepResultsKeepFullOutcome(t *testing.T) {
	detailed := "line one finding\nline two with the actual detailed facts and https://example.com/a"
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: planText(1)}},
		{reply: provider.Reply{Text: detailed}},
		{reply: provider.Reply{Text: "summary"}},
	}}
	e := NewEngine(llm, &stubGateway{}, newMemCheckpoints(), "", 4)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "req"}, "t8")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.StepResults) != 1 {
		t.Fatalf("step_results = %v", out.StepResults)
	}
	want := "Step 1 (task 1): " + detailed
	if out.StepResults[0] != want {
		t.Fatalf("step_results[0] = %q, want %q", out.StepResults[0], want)
	}
	// Finalization sees the full entries, multi-line and all.
	finalizePrompt := llm.calls[len(llm.calls)-1].Content
	if !strings.Contains(finalizePrompt, "line two with the actual detailed facts") {
		t.Fatalf("finalize prompt lost step detail: %q", finalizePrompt)
	}
}

func TestLogLineIsSingleShortLine(t *testing.T) {
	got := logLine("first line\nsecond line")
	if got != "first line" {
		t.Fatalf("logLine = %q", got)
	}
	long := strings.Repeat("x", 300)
	if got := logLine(long); len(got) != 200 {
		t.Fatalf("logLine length = %d", len(got))
	}
}

func TestRunToolLoopBounded(t *testing.T) {
	loop := genResult{reply: provider.Reply{ToolCalls: []provider.ToolCall{
		{ID: "c", Name: "web.search", Arguments: `{}`},
	}}}
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: planText(1)}},
		loop, loop, loop,
		{reply: provider.Reply{Text: "summary"}},
	}}
	e := NewEngine(llm, &stubGateway{}, newMemCheckpoints(), "", 3)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "req"}, "t4")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.PlanSteps[0].Status != StatusBlocked {
		t.Fatalf("runaway tool loop should block the step, got %q", out.PlanSteps[0].Status)
	}
	if out.FinalSummary == nil {
		t.Fatalf("run did not reach finalize")
	}
}

func TestRunUnparseablePlanFallsBackToRequest(t *testing.T) {
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: ""}},
		{reply: provider.Reply{Text: "handled directly"}},
		{reply: provider.Reply{Text: "summary"}},
	}}
	e := NewEngine(llm, &stubGateway{}, newMemCheckpoints(), "", 4)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "the original ask"}, "t5")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.PlanSteps) != 1 {
		t.Fatalf("expected 1 fallback step, got %d", len(out.PlanSteps))
	}
	if out.PlanSteps[0].Task != "the original ask" {
		t.Fatalf("fallback task = %q", out.PlanSteps[0].Task)
	}
}

func TestRunPlanCreationFailureStillTerminates(t *testing.T) {
	llm := &scriptedLLM{script: []genResult{
		{err: errors.New("gateway down")},
		{reply: provider.Reply{Text: "summary of nothing"}},
	}}
	e := NewEngine(llm, &stubGateway{}, newMemCheckpoints(), "", 4)

	out, err := e.Run(context.Background(), PlanState{InitialRequest: "req"}, "t6")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.PlanSteps) != 0 {
		t.Fatalf("expected empty plan, got %d steps", len(out.PlanSteps))
	}
	if out.FinalSummary == nil {
		t.Fatalf("terminal state must carry a final summary")
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ck := newMemCheckpoints()
	idx := 1
	ck.states["t7"] = PlanState{
		InitialRequest: "req",
		PlanSteps: []PlanStep{
			{Sequence: 1, Task: "task 1", Status: StatusCompleted, Result: "already done"},
			{Sequence: 2, Task: "task 2", Status: StatusInProgress},
		},
		CurrentStepIndex: &idx,
		StepResults:      []string{"Step 1 (task 1): already done"},
	}
	llm := &scriptedLLM{script: []genResult{
		{reply: provider.Reply{Text: "resumed and finished"}},
		{reply: provider.Reply{Text: "summary"}},
	}}
	gw := &stubGateway{}
	e := NewEngine(llm, gw, ck, "", 4)

	out, err := e.Run(context.Background(), PlanState{}, "t7")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.PlanSteps[0].Result != "already done" {
		t.Fatalf("completed step was re-executed: %+v", out.PlanSteps[0])
	}
	if out.PlanSteps[1].Status != StatusCompleted {
		t.Fatalf("interrupted step not finished: %q", out.PlanSteps[1].Status)
	}
	if len(gw.sessions) != 1 {
		t.Fatalf("expected exactly one re-executed step, got %d sessions", len(gw.sessions))
	}
}

func TestIdentifyStepIdempotentAtExhaustion(t *testing.T) {
	ps := PlanState{PlanSteps: []PlanStep{
		{Sequence: 1, Status: StatusCompleted},
		{Sequence: 2, Status: StatusBlocked},
	}}
	for i := 0; i < 3; i++ {
		identifyStep(&ps)
		if ps.CurrentStepIndex != nil {
			t.Fatalf("iteration %d: index should stay nil", i)
		}
	}
	if ps.PlanSteps[0].Status != StatusCompleted || ps.PlanSteps[1].Status != StatusBlocked {
		t.Fatalf("identifyStep mutated exhausted steps: %+v", ps.PlanSteps)
	}
}

func TestIdentifyStepSelectsFirstPending(t *testing.T) {
	ps := PlanState{PlanSteps: []PlanStep{
		{Sequence: 1, Status: StatusCompleted},
		{Sequence: 2, Status: StatusNotStarted},
		{Sequence: 3, Status: StatusNotStarted},
	}}
	identifyStep(&ps)
	if ps.CurrentStepIndex == nil || *ps.CurrentStepIndex != 1 {
		t.Fatalf("current_step_index = %v", ps.CurrentStepIndex)
	}
	if ps.PlanSteps[1].Status != StatusInProgress {
		t.Fatalf("selected step status = %q", ps.PlanSteps[1].Status)
	}
	if ps.PlanSteps[2].Status != StatusNotStarted {
		t.Fatalf("later step must stay untouched")
	}
}
