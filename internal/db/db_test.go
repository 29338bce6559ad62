package db

import (
	"database/sql"
	"math"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"sewplan/internal/engine"
)

// openTestStore opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func sampleSolution() *engine.Solution {
	return &engine.Solution{
		Assign:       engine.Assignment{1, 0, 0, 1},
		Production:   []float64{10, 20, 0, 5},
		Produced:     [][]float64{{10, 20}, {0, 5}},
		Shipment:     [][]float64{{8, 20}, {0, 5}},
		Experience:   []float64{0, 1, 2, 0},
		Efficiency:   []float64{0.32, 0.35, 0.4, 0.32},
		FinalBacklog: []float64{0, 12},
		Changes:      []engine.Changeover{{Line: 0, From: -1, To: 1, Day: 1}},
		TotalSetup:   150,
		TotalLate:    600,
		TotalExp:     3,
		TotalCost:    747,
		Seed:         42,
	}
}

func TestStore_SaveAndListRuns(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	now := time.Now()
	id, err := s.SaveRun(RunRecord{
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		InputFile:  "Small.xlsx",
		Iterations: 120,
		BestCost:   747,
		SetupCost:  150,
		LateCost:   600,
		ExpReward:  3,
	}, sampleSolution())
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" {
		t.Fatal("SaveRun returned empty id")
	}

	runs, err := s.ListRuns(5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns len = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id {
		t.Errorf("ID = %q, want %q", r.ID, id)
	}
	if r.InputFile != "Small.xlsx" || r.Iterations != 120 {
		t.Errorf("InputFile/Iterations = %q/%d, want Small.xlsx/120", r.InputFile, r.Iterations)
	}
	if math.Abs(r.BestCost-747) > 1e-9 {
		t.Errorf("BestCost = %v, want 747", r.BestCost)
	}
}

func TestStore_SolutionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	want := sampleSolution()
	id, err := s.SaveRun(RunRecord{
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		InputFile:  "x.xlsx",
		Iterations: 1,
		BestCost:   want.TotalCost,
	}, want)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetSolution(id)
	if err != nil {
		t.Fatalf("GetSolution: %v", err)
	}
	if got.TotalCost != want.TotalCost {
		t.Errorf("TotalCost = %v, want %v", got.TotalCost, want.TotalCost)
	}
	if len(got.Assign) != len(want.Assign) {
		t.Fatalf("Assign len = %d, want %d", len(got.Assign), len(want.Assign))
	}
	for i := range want.Assign {
		if got.Assign[i] != want.Assign[i] {
			t.Errorf("Assign[%d] = %d, want %d", i, got.Assign[i], want.Assign[i])
		}
	}
	if len(got.Changes) != 1 || got.Changes[0].To != 1 {
		t.Errorf("Changes = %+v, want one changeover to style 1", got.Changes)
	}
}

func TestStore_GetSolutionUnknownID(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	if _, err := s.GetSolution("nope"); err == nil {
		t.Error("expected error for unknown run id")
	}
}
