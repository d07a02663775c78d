package core

import (
	"strings"
	"testing"
)

func TestFormatPlanStatusMarks(t *testing.T) {
	steps := []PlanStep{
		{Sequence: 1, Task: "done one", Status: StatusCompleted},
		{Sequence: 2, Task: "active one", Status: StatusInProgress, Action: "search the web"},
		{Sequence: 3, Task: "stuck one", Status: StatusBlocked},
		{Sequence: 4, Task: "waiting one", Status: StatusNotStarted},
	}
	out := FormatPlanStatus(steps)

	for _, want := range []string{
		"[✓] Step 1: done one",
		"[→] Step 2: active one",
		"[!] Step 3: stuck one",
		"[ ] Step 4: waiting one",
		"Notes: search the web",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatPlanStatusEmpty(t *testing.T) {
	if out := FormatPlanStatus(nil); out != "" {
		t.Fatalf("expected empty board, got %q", out)
	}
}
