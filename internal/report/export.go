package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"sewplan/internal/engine"
	"sewplan/internal/model"
)

// stylePalette cycles across styles for the schedule grid fills.
var stylePalette = []string{
	"E6194B", "3CB44B", "FFE119", "4363D8", "F58231",
	"911EB4", "46FBEB", "F032E6", "BCF60C", "FABEBE",
	"008080", "E6BEFF", "9A6324", "FFFAC8", "800000",
}

const scheduleSheet = "Line-Schedule"

// Export writes the schedule grid and one ledger sheet per style to an xlsx
// file at path.
func Export(p *model.Problem, sol *engine.Solution, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sf, err := makeFormats(f)
	if err != nil {
		return fmt.Errorf("register styles: %w", err)
	}
	if err := writeScheduleSheet(f, sf, p, sol); err != nil {
		return fmt.Errorf("schedule sheet: %w", err)
	}
	ledgers := BuildLedgers(p, sol)
	for i, sl := range ledgers {
		if err := writeLedgerSheet(f, sf, p, sl, styleColor(i)); err != nil {
			return fmt.Errorf("ledger sheet %s: %w", sl.Style, err)
		}
	}

	// The default sheet excelize creates is replaced by our first one.
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(scheduleSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func styleColor(i int) string {
	return stylePalette[i%len(stylePalette)]
}

type sheetFormats struct {
	header  int
	weekday int
	center  int
	number  int
	percent int
	decimal int
}

func makeFormats(f *excelize.File) (*sheetFormats, error) {
	var sf sheetFormats
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := excelize.Alignment{Horizontal: "center", Vertical: "center"}

	if sf.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &center,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
		Border:    border,
	}); err != nil {
		return nil, err
	}
	if sf.weekday, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 9},
		Alignment: &center,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"EFEFEF"}},
		Border:    border,
	}); err != nil {
		return nil, err
	}
	if sf.center, err = f.NewStyle(&excelize.Style{Alignment: &center, Border: border}); err != nil {
		return nil, err
	}
	numFmt := "#,##0"
	if sf.number, err = f.NewStyle(&excelize.Style{Alignment: &center, Border: border, CustomNumFmt: &numFmt}); err != nil {
		return nil, err
	}
	pctFmt := "0%"
	if sf.percent, err = f.NewStyle(&excelize.Style{Alignment: &center, Border: border, CustomNumFmt: &pctFmt}); err != nil {
		return nil, err
	}
	decFmt := "0.0"
	if sf.decimal, err = f.NewStyle(&excelize.Style{Alignment: &center, Border: border, CustomNumFmt: &decFmt}); err != nil {
		return nil, err
	}
	return &sf, nil
}

func writeScheduleSheet(f *excelize.File, sf *sheetFormats, p *model.Problem, sol *engine.Solution) error {
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return err
	}
	grid := BuildSchedule(p, sol)

	// Per-style fill styles, keyed by style name.
	styleFills := make(map[string]int, len(p.Styles))
	for i, name := range p.Styles {
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{styleColor(i)}},
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			},
		})
		if err != nil {
			return err
		}
		styleFills[name] = id
	}

	// Two header rows: dates then weekdays.
	if err := setCell(f, scheduleSheet, 1, 1, "Line", sf.header); err != nil {
		return err
	}
	if err := setCell(f, scheduleSheet, 2, 1, "Type", sf.header); err != nil {
		return err
	}
	if err := setCell(f, scheduleSheet, 1, 2, "", sf.header); err != nil {
		return err
	}
	if err := setCell(f, scheduleSheet, 2, 2, "Day", sf.weekday); err != nil {
		return err
	}
	for d, h := range grid.DayHeaders {
		if err := setCell(f, scheduleSheet, d+3, 1, h, sf.header); err != nil {
			return err
		}
		if err := setCell(f, scheduleSheet, d+3, 2, grid.WeekdayRow[d], sf.weekday); err != nil {
			return err
		}
	}

	rowTypes := []string{"Style", "Qty", "Eff", "Exp", "MaxEff"}
	for b, block := range grid.Blocks {
		top := 3 + b*len(rowTypes)

		// Merge the line label across its five rows.
		topCell, _ := excelize.CoordinatesToCellName(1, top)
		botCell, _ := excelize.CoordinatesToCellName(1, top+len(rowTypes)-1)
		if err := f.MergeCell(scheduleSheet, topCell, botCell); err != nil {
			return err
		}
		if err := setCell(f, scheduleSheet, 1, top, block.Line, sf.center); err != nil {
			return err
		}
		for i, rt := range rowTypes {
			if err := setCell(f, scheduleSheet, 2, top+i, rt, sf.center); err != nil {
				return err
			}
		}

		for d := 0; d < p.Days; d++ {
			col := d + 3
			fill, ok := styleFills[block.Styles[d]]
			if !ok {
				fill = sf.center
			}
			if err := setCell(f, scheduleSheet, col, top, block.Styles[d], fill); err != nil {
				return err
			}
			if err := setCell(f, scheduleSheet, col, top+1, block.Qty[d], sf.number); err != nil {
				return err
			}
			if err := setCell(f, scheduleSheet, col, top+2, block.Eff[d], sf.percent); err != nil {
				return err
			}
			if err := setCell(f, scheduleSheet, col, top+3, block.Exp[d], sf.decimal); err != nil {
				return err
			}
			if err := setCell(f, scheduleSheet, col, top+4, block.MaxEff[d], sf.percent); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(scheduleSheet, &excelize.Panes{
		Freeze: true, XSplit: 2, YSplit: 2, TopLeftCell: "C3", ActivePane: "bottomRight",
	})
}

// ledgerRows orders the nine metrics of a style sheet.
var ledgerRows = []struct {
	label string
	data  func(*StyleLedger) []float64
}{
	{"Demand", func(sl *StyleLedger) []float64 { return sl.Demand }},
	{"Fabric Receiving", func(sl *StyleLedger) []float64 { return sl.FabricIn }},
	{"Beg. Inv Fabric", func(sl *StyleLedger) []float64 { return sl.BegFabric }},
	{"Producing", func(sl *StyleLedger) []float64 { return sl.Producing }},
	{"End. Inv Fabric", func(sl *StyleLedger) []float64 { return sl.EndFabric }},
	{"Beg. Inv FG", func(sl *StyleLedger) []float64 { return sl.BegFG }},
	{"Shipping", func(sl *StyleLedger) []float64 { return sl.Shipping }},
	{"End. Inv FG", func(sl *StyleLedger) []float64 { return sl.EndFG }},
	{"Backlog", func(sl *StyleLedger) []float64 { return sl.Backlog }},
}

func writeLedgerSheet(f *excelize.File, sf *sheetFormats, p *model.Problem, sl *StyleLedger, color string) error {
	sheet := ledgerSheetName(sl.Style)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headerFill, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	headers := dayHeaders(p)
	weekdays := weekdayRow(p)
	if err := setCell(f, sheet, 1, 1, "Metric", headerFill); err != nil {
		return err
	}
	if err := setCell(f, sheet, 1, 2, "Day", sf.weekday); err != nil {
		return err
	}
	for d := range headers {
		if err := setCell(f, sheet, d+2, 1, headers[d], headerFill); err != nil {
			return err
		}
		if err := setCell(f, sheet, d+2, 2, weekdays[d], sf.weekday); err != nil {
			return err
		}
	}

	for i, rowDef := range ledgerRows {
		row := i + 3
		if err := setCell(f, sheet, 1, row, rowDef.label, sf.center); err != nil {
			return err
		}
		for d, v := range rowDef.data(sl) {
			if err := setCell(f, sheet, d+2, row, v, sf.number); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(p.Days + 1)
	if err := f.SetColWidth(sheet, "B", lastCol, 10); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, XSplit: 1, YSplit: 2, TopLeftCell: "B3", ActivePane: "bottomRight",
	})
}

// ledgerSheetName keeps sheet names inside the 31-character xlsx limit.
func ledgerSheetName(style string) string {
	name := "S_" + style
	if len(name) > 30 {
		name = name[:30]
	}
	return name
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}, styleID int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, styleID)
}
