package workbook

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// writeTestWorkbook builds a small planning workbook exercising the header
// quirks the loader has to cope with: a banner row above the calendar
// header, a two-row header on the line-style sheet, and a curve sheet whose
// header sits below junk rows.
func writeTestWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	write := func(sheet string, rows [][]interface{}) {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet(%s): %v", sheet, err)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					t.Fatalf("SetCellValue(%s %s): %v", sheet, cell, err)
				}
			}
		}
	}

	write("style_input", [][]interface{}{
		{"Style", "SAM", "Fabric Processing Time", "Product Finishing Time"},
		{"POLO-01", 10.5, 0, 1},
		{"TEE-02", 8.0, 1, ""},
	})
	write("line_input", [][]interface{}{
		{"Line", "Sewer", "Experience", "Current Style"},
		{"L1", 20, 4, "POLO-01"},
		{"L2", 15, 0, ""},
	})
	write("line_date_input", [][]interface{}{
		{"Weekly calendar"},
		{"Date", "Line", "Working Hour"},
		{"2026-08-03", "L1", 8},
		{"2026-08-04", "L1", 8},
		{"2026-08-05", "L1", 0},
		{"2026-08-03", "L2", 8},
		{"2026-08-04", "L2", 8},
		{"2026-08-05", "L2", 8},
	})
	write("order_input", [][]interface{}{
		{"Style2", "Sum", "Exf-SX", "Fabric start ETA RG"},
		{"POLO-01", 400, "2026-08-04", "2026-08-03"},
		{"TEE-02", 250, "2026-09-20", "garbage"}, // outside horizon + unparseable
		{"UNKNOWN", 99, "2026-08-03", "2026-08-03"},
	})
	write("enable_style_line_input", [][]interface{}{
		{"Line", "POLO-01", "TEE-02"},
		{"L1", 1, 1},
		{"L2", 0, 1},
	})
	write("line_style_input", [][]interface{}{
		{"Initial experience per style"},
		{"Line", "POLO-01", "TEE-02"},
		{"L1", 4, 0},
		{"L2", 0, 2},
	})
	write("learning_curve_input", [][]interface{}{
		{"Learning curve master data"},
		{""},
		{"Experience", "Efficiency"},
		{1, 0.3},
		{10, 0.7},
	})

	f.DeleteSheet("Sheet1")
	path := filepath.Join(t.TempDir(), "plan.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestLoad_FullWorkbook(t *testing.T) {
	in, err := Load(writeTestWorkbook(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(in.Styles) != 2 {
		t.Fatalf("styles = %d, want 2", len(in.Styles))
	}
	if in.Styles[0].ID != "POLO-01" || in.Styles[0].SAM != 10.5 {
		t.Errorf("style[0] = %+v", in.Styles[0])
	}
	// Blank finishing time defaults to 1.
	if in.Styles[1].FinishLead != 1 {
		t.Errorf("TEE-02 finish lead = %d, want default 1", in.Styles[1].FinishLead)
	}

	if len(in.Lines) != 2 || in.Lines[0].InitialStyle != "POLO-01" || in.Lines[0].Experience != 4 {
		t.Errorf("lines = %+v", in.Lines)
	}

	// Calendar header was on row 2; three unique dates make the horizon.
	if in.Days != 3 {
		t.Fatalf("days = %d, want 3", in.Days)
	}
	if want := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC); !in.Dates[0].Equal(want) {
		t.Errorf("first date = %v, want %v", in.Dates[0], want)
	}
	if len(in.Calendar) != 6 {
		t.Errorf("calendar records = %d, want 6", len(in.Calendar))
	}

	// Orders: unknown style dropped; clamping on the second order.
	if len(in.Orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(in.Orders))
	}
	if in.Orders[0].DemandDay != 2 || in.Orders[0].FabricDay != 1 {
		t.Errorf("order[0] days = %d/%d, want 2/1", in.Orders[0].DemandDay, in.Orders[0].FabricDay)
	}
	if in.Orders[1].DemandDay != 3 || in.Orders[1].FabricDay != 3 {
		t.Errorf("order[1] days = %d/%d, want clamped 3/3", in.Orders[1].DemandDay, in.Orders[1].FabricDay)
	}

	// Capability: L2 cannot sew POLO-01.
	if len(in.Capabilities) != 3 {
		t.Errorf("capabilities = %+v, want 3 entries", in.Capabilities)
	}
	for _, c := range in.Capabilities {
		if c.Line == "L2" && c.Style == "POLO-01" {
			t.Error("L2/POLO-01 should not be enabled")
		}
	}

	// Pair experience from the two-row-header sheet.
	foundPair := false
	for _, pe := range in.PairExp {
		if pe.Line == "L2" && pe.Style == "TEE-02" && pe.Days == 2 {
			foundPair = true
		}
	}
	if !foundPair {
		t.Errorf("pair experience L2/TEE-02 missing: %+v", in.PairExp)
	}

	// Curve detected despite junk rows above the header.
	if len(in.Curve) != 2 || in.Curve[0].Experience != 1 || in.Curve[1].Efficiency != 0.7 {
		t.Errorf("curve = %+v", in.Curve)
	}
}

func TestLoad_MissingCurveWarnsOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	write := func(sheet string, rows [][]interface{}) {
		f.NewSheet(sheet)
		for r, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				f.SetCellValue(sheet, cell, v)
			}
		}
	}
	write("style_input", [][]interface{}{{"Style", "SAM"}, {"A", 10}})
	write("line_input", [][]interface{}{{"Line", "Sewer"}, {"L1", 10}})
	write("line_date_input", [][]interface{}{{"Date", "Line", "Working Hour"}, {"2026-08-03", "L1", 8}})
	write("order_input", [][]interface{}{{"Style2", "Sum"}, {"A", 100}})
	write("enable_style_line_input", [][]interface{}{{"Line", "A"}, {"L1", 1}})
	f.DeleteSheet("Sheet1")

	path := filepath.Join(t.TempDir(), "nocurve.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	in, err := Load(path)
	if err != nil {
		t.Fatalf("Load should tolerate a missing curve sheet: %v", err)
	}
	if in.Curve != nil {
		t.Errorf("curve = %+v, want nil (default applied downstream)", in.Curve)
	}
	// Orders without date columns clamp to the single day.
	if len(in.Orders) != 1 || in.Orders[0].DemandDay != 1 {
		t.Errorf("orders = %+v", in.Orders)
	}
}

func TestLoad_MissingRequiredColumnFails(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.NewSheet("style_input")
	f.SetCellValue("style_input", "A1", "Style") // SAM column absent
	f.SetCellValue("style_input", "A2", "A")
	f.DeleteSheet("Sheet1")

	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for a missing required column")
	}
}

func TestParseDate_Formats(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2026-08-03", time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), true},
		{"08/03/2026", time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), true},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := parseDate(tc.raw)
		if ok != tc.ok {
			t.Errorf("parseDate(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(tc.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
