package core

import (
	"strings"
	"testing"
)

func TestParsePlanFencedRoundTrip(t *testing.T) {
	raw := "```json\n[{\"plan_sequence\":1,\"task\":\"T\",\"action\":[\"a\",\"b\"]}]\n```"
	steps := ParsePlan(raw, "orig")
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	s := steps[0]
	if s.Task != "T" {
		t.Fatalf("task = %q", s.Task)
	}
	if s.Action != "a\nb" {
		t.Fatalf("action = %q", s.Action)
	}
	if s.Status != StatusNotStarted {
		t.Fatalf("status = %q", s.Status)
	}
	if s.Sequence != 1 {
		t.Fatalf("sequence = %d", s.Sequence)
	}
}

func TestParsePlanUnfencedList(t *testing.T) {
	raw := `[{"plan_sequence":2,"task":"second","action":"later"},{"plan_sequence":1,"task":"first","action":"now"}]`
	steps := ParsePlan(raw, "orig")
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Task != "first" || steps[1].Task != "second" {
		t.Fatalf("steps not sorted by sequence: %+v", steps)
	}
}

func TestParsePlanFenceMarkersOnWholeText(t *testing.T) {
	raw := "```json\n[{\"plan_sequence\":1,\"task\":\"only\"}]"
	steps := ParsePlan(raw, "orig")
	if len(steps) != 1 || steps[0].Task != "only" {
		t.Fatalf("got %+v", steps)
	}
}

func TestParsePlanRawTextBecomesManualReview(t *testing.T) {
	steps := ParsePlan("I could not think of a plan, sorry.", "orig")
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].Action != "manual review needed" {
		t.Fatalf("action = %q", steps[0].Action)
	}
	if !strings.Contains(steps[0].Task, "could not think") {
		t.Fatalf("task = %q", steps[0].Task)
	}
}

func TestParsePlanEmptyInputFallsBackToRequest(t *testing.T) {
	steps := ParsePlan("", "find me a mascot idea")
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].Task != "find me a mascot idea" {
		t.Fatalf("task = %q", steps[0].Task)
	}
}

func TestParsePlanNeverEmpty(t *testing.T) {
	inputs := []string{"", "{}", "```json\nnot json\n```", "[1,2,3]", "just prose"}
	for _, in := range inputs {
		steps := ParsePlan(in, "orig")
		if len(steps) == 0 {
			t.Fatalf("empty plan for input %q", in)
		}
		for i := 1; i < len(steps); i++ {
			if steps[i].Sequence < steps[i-1].Sequence {
				t.Fatalf("unsorted plan for input %q: %+v", in, steps)
			}
		}
	}
}

func TestParsePlanActionCoercion(t *testing.T) {
	raw := `[{"plan_sequence":1,"task":"t","action":42}]`
	steps := ParsePlan(raw, "orig")
	if steps[0].Action != "42" {
		t.Fatalf("action = %q", steps[0].Action)
	}
}
