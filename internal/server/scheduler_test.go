package server

import (
	"testing"
	"time"
)

func TestIsDueDaily(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatalf("never-run @daily should be due")
	}
	recent := time.Now().Add(-1 * time.Hour)
	if isDue("@daily", &recent) {
		t.Fatalf("@daily ran an hour ago, not due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatalf("@daily ran 25h ago, should be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatalf("@hourly ran 10m ago, not due")
	}
	old := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &old) {
		t.Fatalf("@hourly ran 2h ago, should be due")
	}
}

func TestIsDueCronExpr(t *testing.T) {
	// every minute
	old := time.Now().Add(-5 * time.Minute)
	if !isDue("* * * * *", &old) {
		t.Fatalf("per-minute cron with 5m-old run should be due")
	}
	if !isDue("* * * * *", nil) {
		t.Fatalf("never-run cron should be due")
	}
}

func TestIsDueInvalidSpecFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	if isDue("not a cron", &recent) {
		t.Fatalf("invalid spec with recent run should not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("not a cron", &old) {
		t.Fatalf("invalid spec with old run should fall back to daily")
	}
}
