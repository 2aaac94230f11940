package domain_test

import (
	"testing"

	"pulseboard/internal/domain"
)

func TestCloneIsDeep(t *testing.T) {
	orig := domain.Report{
		ID:         "db-1",
		Highlights: []string{"a"},
		Risks:      []domain.RiskEntry{{ID: "risk-1", Description: "d"}},
	}
	cp := orig.Clone()
	cp.Highlights[0] = "mutated"
	cp.Risks[0].Description = "mutated"
	if orig.Highlights[0] != "a" || orig.Risks[0].Description != "d" {
		t.Fatalf("clone shares backing arrays: %+v", orig)
	}
}

func TestClonePreservesEmptiness(t *testing.T) {
	orig := domain.Report{Highlights: []string{}, UpcomingWork: nil}
	cp := orig.Clone()
	if cp.Highlights == nil {
		t.Fatal("empty list became nil")
	}
	if cp.UpcomingWork != nil {
		t.Fatal("nil list became non-nil")
	}
}
