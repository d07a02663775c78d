package core

import (
	"fmt"
	"strings"
)

// FormatPlanStatus renders a progress board for a plan, used in execution
// prompts and run logs.
func FormatPlanStatus(steps []PlanStep) string {
	var b strings.Builder
	for _, s := range steps {
		mark := " "
		switch s.Status {
		case StatusCompleted:
			mark = "✓"
		case StatusInProgress:
			mark = "→"
		case StatusBlocked:
			mark = "!"
		}
		fmt.Fprintf(&b, "[%s] Step %d: %s\n", mark, s.Sequence, s.Task)
		if s.Action != "" {
			fmt.Fprintf(&b, "    Notes: %s\n", s.Action)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
