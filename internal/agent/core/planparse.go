package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParsePlan turns raw model text into an ordered, non-empty list of plan
// steps. It never fails: each strategy below is tried in order and the first
// success wins, falling back to a single synthesized step built from the
// original user request.
func ParsePlan(raw, initialRequest string) []PlanStep {
	strategies := []func(string) (any, bool){
		parseFencedList,
		parseStrippedList,
		wrapRawText,
	}

	var parsed any
	for _, strat := range strategies {
		if v, ok := strat(raw); ok {
			parsed = v
			break
		}
	}

	steps := stepsFromParsed(parsed)
	if len(steps) == 0 {
		steps = []PlanStep{{
			Sequence: 1,
			Task:     initialRequest,
			Action:   "no plan was produced; handle the request directly",
			Status:   StatusNotStarted,
		}}
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	return steps
}

// parseFencedList looks for a fenced code block and parses its inner text as
// a JSON list.
func parseFencedList(raw string) (any, bool) {
	m := fencedJSONRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	var list []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &list); err != nil {
		return nil, false
	}
	return list, true
}

// parseStrippedList removes any surrounding fence markers from the whole
// text and parses the remainder as a JSON list.
func parseStrippedList(raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, false
	}
	return list, true
}

// wrapRawText is the terminal strategy: it always succeeds, wrapping the raw
// text in a single-field record.
func wrapRawText(raw string) (any, bool) {
	return map[string]any{"text": raw, "is_raw_text": true}, true
}

// stepsFromParsed normalizes the parsed value into plan steps.
func stepsFromParsed(parsed any) []PlanStep {
	switch v := parsed.(type) {
	case []any:
		steps := make([]PlanStep, 0, len(v))
		for i, e := range v {
			rec, ok := e.(map[string]any)
			if !ok {
				continue
			}
			steps = append(steps, PlanStep{
				Sequence: intField(rec, "plan_sequence", i+1),
				Task:     strField(rec, "task"),
				Action:   normalizeAction(rec["action"]),
				Status:   StatusNotStarted,
			})
		}
		return steps
	case map[string]any:
		isRaw, _ := v["is_raw_text"].(bool)
		text := strings.TrimSpace(strField(v, "text"))
		if (isRaw || v["text"] != nil) && text != "" {
			return []PlanStep{{
				Sequence: 1,
				Task:     text,
				Action:   "manual review needed",
				Status:   StatusNotStarted,
			}}
		}
	}
	return nil
}

// normalizeAction joins a list of action strings into one string; a non-list
// value is coerced to text.
func normalizeAction(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return a
	case []any:
		parts := make([]string, 0, len(a))
		for _, e := range a {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(a)
	}
}

func strField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string, fallback int) int {
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return int(i)
		}
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return i
		}
	}
	return fallback
}
