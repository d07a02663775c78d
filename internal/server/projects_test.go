package server

import (
	"strings"
	"testing"
)

func TestParsePlanRecommendationFenced(t *testing.T) {
	raw := "Here you go:\n```json\n{\"title\":\"Prototype\",\"contents\":\"Build a paper prototype\",\"description\":\"low fidelity first\"}\n```"
	rec, err := parsePlanRecommendation(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Title != "Prototype" {
		t.Fatalf("title = %q", rec.Title)
	}
	if !strings.Contains(rec.Contents, "paper prototype") {
		t.Fatalf("contents = %q", rec.Contents)
	}
}

func TestParsePlanRecommendationBareJSON(t *testing.T) {
	rec, err := parsePlanRecommendation(`{"title":"T","contents":"C","description":"D"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Description != "D" {
		t.Fatalf("description = %q", rec.Description)
	}
}

func TestParsePlanRecommendationRejectsJunk(t *testing.T) {
	if _, err := parsePlanRecommendation("no json here"); err == nil {
		t.Fatalf("expected error for non-JSON input")
	}
	if _, err := parsePlanRecommendation(`{"contents":"missing title"}`); err == nil {
		t.Fatalf("expected error when title is missing")
	}
}
