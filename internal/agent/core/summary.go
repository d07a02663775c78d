package core

import (
	"encoding/json"
	"strings"
)

// referenceKeywords are the section markers scanned for when splitting a
// summary from its citation block, in fixed priority order. The first
// keyword that actually yields a citation block wins; a bare keyword match
// with nothing parseable after it is skipped.
var referenceKeywords = []string{"References", "참고 자료", "Sources", "출처"}

// ParseSummary splits raw model text into a narrative summary and a list of
// citation records. Total: any parse failure degrades to the whole text as
// the summary with no references.
func ParseSummary(raw string) FinalSummary {
	for _, kw := range referenceKeywords {
		markerAt := strings.LastIndex(raw, "\n"+kw+"\n")
		markerLen := len(kw) + 2
		if markerAt < 0 {
			markerAt = strings.LastIndex(raw, kw)
			markerLen = len(kw)
		}
		if markerAt < 0 {
			continue
		}

		block := extractReferenceBlock(raw[markerAt+markerLen:])
		if block == "" {
			continue
		}

		var refs []Reference
		if err := json.Unmarshal([]byte(block), &refs); err != nil {
			return FinalSummary{TextSummary: raw, References: []Reference{}}
		}
		return FinalSummary{
			TextSummary: strings.TrimSpace(raw[:markerAt]),
			References:  refs,
		}
	}
	return FinalSummary{TextSummary: raw, References: []Reference{}}
}

// extractReferenceBlock finds the citation payload after a section marker:
// a fenced code block if present, else a bare bracketed list.
func extractReferenceBlock(tail string) string {
	if m := fencedJSONRe.FindStringSubmatch(tail); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(tail, "[")
	end := strings.LastIndex(tail, "]")
	if start >= 0 && end > start {
		return tail[start : end+1]
	}
	return ""
}
