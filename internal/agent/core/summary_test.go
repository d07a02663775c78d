package core

import (
	"strings"
	"testing"
)

func TestParseSummaryReferencesScenario(t *testing.T) {
	raw := "Answer body\nReferences\n```json\n[{\"title\":\"X\",\"description\":\"Y\",\"url\":\"Z\",\"type\":\"webpage\"}]\n```"
	fs := ParseSummary(raw)
	if fs.TextSummary != "Answer body" {
		t.Fatalf("text_summary = %q", fs.TextSummary)
	}
	if len(fs.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(fs.References))
	}
	r := fs.References[0]
	if r.Title != "X" || r.Description != "Y" || r.URL != "Z" || r.Type != "webpage" {
		t.Fatalf("reference = %+v", r)
	}
}

func TestParseSummaryNoMarker(t *testing.T) {
	fs := ParseSummary("plain answer with no sources")
	if fs.TextSummary != "plain answer with no sources" {
		t.Fatalf("text_summary = %q", fs.TextSummary)
	}
	if len(fs.References) != 0 {
		t.Fatalf("expected no references, got %d", len(fs.References))
	}
}

func TestParseSummaryBareBracketList(t *testing.T) {
	raw := "Body\nSources\n[{\"title\":\"A\",\"url\":\"u\"}]"
	fs := ParseSummary(raw)
	if fs.TextSummary != "Body" {
		t.Fatalf("text_summary = %q", fs.TextSummary)
	}
	if len(fs.References) != 1 || fs.References[0].Title != "A" {
		t.Fatalf("references = %+v", fs.References)
	}
}

func TestParseSummaryBadBlockKeepsWholeText(t *testing.T) {
	raw := "Body\nReferences\n```json\n{\"not\":\"a list\"}\n```"
	fs := ParseSummary(raw)
	if fs.TextSummary != raw {
		t.Fatalf("text_summary should be the whole text, got %q", fs.TextSummary)
	}
	if len(fs.References) != 0 {
		t.Fatalf("expected no references, got %d", len(fs.References))
	}
}

func TestParseSummaryFirstKeywordWithBlockWins(t *testing.T) {
	// Both markers carry a block; the earlier keyword in the fixed list
	// wins regardless of position in the text.
	raw := "Intro\n출처\n[{\"title\":\"K\"}]\nBody\nReferences\n[{\"title\":\"R\"}]"
	fs := ParseSummary(raw)
	if len(fs.References) != 1 || fs.References[0].Title != "R" {
		t.Fatalf("references = %+v", fs.References)
	}
	if strings.Contains(fs.TextSummary, "References") {
		t.Fatalf("summary should stop before the winning marker: %q", fs.TextSummary)
	}
}

func TestParseSummaryStrayKeywordAfterBlockIgnored(t *testing.T) {
	// A later-listed keyword mentioned in passing, with no citation block
	// of its own, must not displace an earlier keyword's parsed block.
	raw := "Answer body\nReferences\n```json\n[{\"title\":\"X\",\"url\":\"u\"}]\n```\nConsult your own Sources for more."
	fs := ParseSummary(raw)
	if len(fs.References) != 1 || fs.References[0].Title != "X" {
		t.Fatalf("references = %+v", fs.References)
	}
	if fs.TextSummary != "Answer body" {
		t.Fatalf("text_summary = %q", fs.TextSummary)
	}
}

func TestParseSummaryKoreanMarker(t *testing.T) {
	raw := "요약입니다\n참고 자료\n[{\"title\":\"문서\",\"url\":\"u\"}]"
	fs := ParseSummary(raw)
	if fs.TextSummary != "요약입니다" {
		t.Fatalf("text_summary = %q", fs.TextSummary)
	}
	if len(fs.References) != 1 {
		t.Fatalf("references = %+v", fs.References)
	}
}

func TestParseSummaryEmptyInput(t *testing.T) {
	fs := ParseSummary("")
	if fs.TextSummary != "" || len(fs.References) != 0 {
		t.Fatalf("got %+v", fs)
	}
}
