package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"sewplan/internal/engine"
	"sewplan/internal/model"
)

func solvedInstance(t *testing.T) (*model.Problem, *engine.Solution) {
	t.Helper()
	in := &model.Input{
		Styles: []model.StyleRecord{
			{ID: "POLO", SAM: 10},
			{ID: "TEE", SAM: 8, FinishLead: 1},
		},
		Lines: []model.LineRecord{
			{ID: "L1", Sewers: 20, InitialStyle: "POLO"},
			{ID: "L2", Sewers: 10},
		},
		Days: 4,
		Orders: []model.OrderRecord{
			{Style: "POLO", Quantity: 500, DemandDay: 2, FabricDay: 1},
			{Style: "TEE", Quantity: 300, DemandDay: 4, FabricDay: 2},
		},
		Inventory: []model.InventoryRecord{
			{Style: "POLO", Fabric: 200},
			{Style: "TEE", Fabric: 100},
		},
	}
	for _, l := range in.Lines {
		for d := 1; d <= in.Days; d++ {
			in.Calendar = append(in.Calendar, model.CalendarRecord{Line: l.ID, Day: d, Hours: 8})
		}
		for _, s := range in.Styles {
			in.Capabilities = append(in.Capabilities, model.CapabilityRecord{Line: l.ID, Style: s.ID})
		}
	}
	p, err := model.NewProblem(in, model.CostParams{
		SetupCost: 150, ExpReward: 1, LatePenalty: 50, DiscountAlpha: 0.05,
	})
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	sol := engine.NewEvaluator(p).InitialSolution(1)
	return p, sol
}

func TestBuildSchedule_Shape(t *testing.T) {
	p, sol := solvedInstance(t)
	grid := BuildSchedule(p, sol)

	if len(grid.Blocks) != len(p.Lines) {
		t.Fatalf("blocks = %d, want %d", len(grid.Blocks), len(p.Lines))
	}
	if len(grid.DayHeaders) != p.Days {
		t.Fatalf("day headers = %d, want %d", len(grid.DayHeaders), p.Days)
	}
	// No real dates in the input: ordinal headers.
	if grid.DayHeaders[0] != "T1" {
		t.Errorf("header[0] = %q, want T1", grid.DayHeaders[0])
	}
	T := p.Days
	for b, block := range grid.Blocks {
		if block.Line != p.Lines[b] {
			t.Errorf("block %d line = %q, want %q", b, block.Line, p.Lines[b])
		}
		for d := 0; d < T; d++ {
			if block.Styles[d] == "" {
				t.Errorf("block %d day %d has no style name", b, d)
			}
			if block.MaxEff[d] != block.Eff[d] {
				t.Errorf("MaxEff placeholder must mirror Eff at (%d,%d)", b, d)
			}
			idx := b*T + d
			if block.Qty[d] != sol.Production[idx] {
				t.Errorf("Qty mismatch at (%d,%d)", b, d)
			}
		}
	}
}

func TestBuildLedgers_AccountingIdentities(t *testing.T) {
	p, sol := solvedInstance(t)
	ledgers := BuildLedgers(p, sol)

	if len(ledgers) != len(p.Styles) {
		t.Fatalf("ledgers = %d, want %d", len(ledgers), len(p.Styles))
	}
	for s, sl := range ledgers {
		if sl.Style != p.Styles[s] {
			t.Errorf("ledger %d style = %q, want %q", s, sl.Style, p.Styles[s])
		}
		for d := 0; d < p.Days; d++ {
			// Fabric: end = beg + receipts - production.
			wantFab := sl.BegFabric[d] + sl.FabricIn[d] - sl.Producing[d]
			if math.Abs(sl.EndFabric[d]-wantFab) > 1e-9 {
				t.Errorf("%s day %d: EndFabric = %v, want %v", sl.Style, d+1, sl.EndFabric[d], wantFab)
			}
			// FG: end = beg + production - shipment.
			wantFG := sl.BegFG[d] + sl.Producing[d] - sl.Shipping[d]
			if math.Abs(sl.EndFG[d]-wantFG) > 1e-9 {
				t.Errorf("%s day %d: EndFG = %v, want %v", sl.Style, d+1, sl.EndFG[d], wantFG)
			}
			if sl.Backlog[d] < -1e-9 || sl.EndFG[d] < -1e-9 {
				t.Errorf("%s day %d: negative backlog/FG", sl.Style, d+1)
			}
			// Day-over-day chaining.
			if d > 0 && sl.BegFabric[d] != sl.EndFabric[d-1] {
				t.Errorf("%s day %d: BegFabric does not chain", sl.Style, d+1)
			}
		}
		if sl.TotalProduced() < 0 || sl.TotalShipped() < 0 {
			t.Errorf("%s: negative totals", sl.Style)
		}
		if sl.TotalShipped() > sl.TotalProduced()+p.I0Product[s]+1e-9 {
			t.Errorf("%s: shipped %v exceeds produced %v", sl.Style, sl.TotalShipped(), sl.TotalProduced())
		}
	}
}

func TestExport_WritesWorkbook(t *testing.T) {
	p, sol := solvedInstance(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")

	if err := Export(p, sol, path); err != nil {
		t.Fatalf("Export: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("report file is empty")
	}
}

func TestLedgerSheetName_Truncation(t *testing.T) {
	long := "STYLE-WITH-A-VERY-LONG-IDENTIFIER-THAT-OVERFLOWS"
	name := ledgerSheetName(long)
	if len(name) > 31 {
		t.Errorf("sheet name %q exceeds the xlsx limit", name)
	}
	if name[:2] != "S_" {
		t.Errorf("sheet name %q lost its prefix", name)
	}
}
