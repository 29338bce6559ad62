// Package workbook reads the planning workbook and produces the input
// records for the model. Sheet and column names follow the factory's
// planning template; headers are matched flexibly because the template is
// hand-maintained and headers drift between revisions.
package workbook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sewplan/internal/logger"
	"sewplan/internal/model"
)

const (
	sheetStyles     = "style_input"
	sheetLines      = "line_input"
	sheetCalendar   = "line_date_input"
	sheetOrders     = "order_input"
	sheetCapability = "enable_style_line_input"
	sheetPairExp    = "line_style_input"

	// headerScanRows bounds the search for a header row inside a sheet.
	headerScanRows = 20
)

// curveSheets are probed in order for the learning curve.
var curveSheets = []string{"learning_curve_input", "Learning Curve", "LC_Input", "Sheet1"}

// Load reads the workbook at path into input records. Missing required
// sheets or columns are fatal; a missing learning curve or unparseable
// order dates only warn (the curve falls back to the default, dates clamp
// to the horizon tail).
func Load(path string) (*model.Input, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	in := &model.Input{}

	styleSet, err := loadStyles(f, in)
	if err != nil {
		return nil, err
	}
	if err := loadLines(f, in); err != nil {
		return nil, err
	}
	dateOrd, err := loadCalendar(f, in)
	if err != nil {
		return nil, err
	}
	if err := loadOrders(f, in, styleSet, dateOrd); err != nil {
		return nil, err
	}
	if err := loadCapability(f, in, styleSet); err != nil {
		return nil, err
	}
	if err := loadPairExperience(f, in, styleSet); err != nil {
		return nil, err
	}
	loadCurve(f, in)

	return in, nil
}

func loadStyles(f *excelize.File, in *model.Input) (map[string]bool, error) {
	tbl, err := readSheet(f, sheetStyles, []string{"style", "sam"})
	if err != nil {
		return nil, err
	}
	styleSet := make(map[string]bool)
	for _, row := range tbl.rows {
		id := tbl.cell(row, "style")
		if id == "" {
			continue
		}
		if styleSet[id] {
			return nil, fmt.Errorf("sheet %s: duplicate style %q", sheetStyles, id)
		}
		sam, ok := parseNumber(tbl.cell(row, "sam"))
		if !ok {
			return nil, fmt.Errorf("sheet %s: style %q has no numeric SAM", sheetStyles, id)
		}
		rec := model.StyleRecord{
			ID:         id,
			SAM:        sam,
			FabricLead: intOrDefault(tbl.cell(row, "fabric processing time"), 1),
			FinishLead: intOrDefault(tbl.cell(row, "product finishing time"), 1),
		}
		styleSet[id] = true
		in.Styles = append(in.Styles, rec)
	}
	if len(in.Styles) == 0 {
		return nil, fmt.Errorf("sheet %s: no styles found", sheetStyles)
	}
	return styleSet, nil
}

func loadLines(f *excelize.File, in *model.Input) error {
	tbl, err := readSheet(f, sheetLines, []string{"line", "sewer"})
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, row := range tbl.rows {
		id := tbl.cell(row, "line")
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("sheet %s: duplicate line %q", sheetLines, id)
		}
		seen[id] = true
		sewers, ok := parseNumber(tbl.cell(row, "sewer"))
		if !ok {
			return fmt.Errorf("sheet %s: line %q has no numeric sewer count", sheetLines, id)
		}
		exp, _ := parseNumber(tbl.cell(row, "experience"))
		in.Lines = append(in.Lines, model.LineRecord{
			ID:           id,
			Sewers:       int(sewers),
			Experience:   exp,
			InitialStyle: tbl.cell(row, "current style"),
		})
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("sheet %s: no lines found", sheetLines)
	}
	return nil
}

func loadCalendar(f *excelize.File, in *model.Input) (map[string]int, error) {
	tbl, err := readSheet(f, sheetCalendar, []string{"date", "line"})
	if err != nil {
		return nil, err
	}

	type entry struct {
		line  string
		date  time.Time
		hours float64
	}
	var entries []entry
	dateSet := make(map[string]time.Time)
	for i, row := range tbl.rows {
		line := tbl.cell(row, "line")
		rawDate := tbl.cell(row, "date")
		if line == "" || rawDate == "" {
			continue
		}
		date, ok := parseDate(rawDate)
		if !ok {
			logger.Warn("LOAD", fmt.Sprintf("sheet %s row %d: unparseable date %q, row skipped", sheetCalendar, i+1, rawDate))
			continue
		}
		hours, _ := parseNumber(tbl.cell(row, "working hour"))
		entries = append(entries, entry{line: line, date: date, hours: hours})
		dateSet[dateKey(date)] = date
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("sheet %s: no usable calendar rows", sheetCalendar)
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	ord := make(map[string]int, len(dates))
	for i, d := range dates {
		ord[dateKey(d)] = i + 1
	}
	in.Days = len(dates)
	in.Dates = dates

	for _, e := range entries {
		in.Calendar = append(in.Calendar, model.CalendarRecord{
			Line:  e.line,
			Day:   ord[dateKey(e.date)],
			Hours: e.hours,
		})
	}
	return ord, nil
}

func loadOrders(f *excelize.File, in *model.Input, styleSet map[string]bool, dateOrd map[string]int) error {
	tbl, err := readSheet(f, sheetOrders, []string{"style2", "sum"})
	if err != nil {
		return err
	}
	for i, row := range tbl.rows {
		style := tbl.cell(row, "style2")
		if style == "" || !styleSet[style] {
			continue
		}
		qty, ok := parseNumber(tbl.cell(row, "sum"))
		if !ok {
			continue
		}
		demandDay := dayFor(tbl.cell(row, "exf-sx"), dateOrd, in.Days, sheetOrders, i+1)
		fabricDay := dayFor(tbl.cell(row, "fabric start eta rg"), dateOrd, in.Days, sheetOrders, i+1)
		in.Orders = append(in.Orders, model.OrderRecord{
			Style:     style,
			Quantity:  qty,
			DemandDay: demandDay,
			FabricDay: fabricDay,
		})
	}
	return nil
}

// dayFor maps a raw date cell onto the day ordinal, clamping to the last
// day when the date is missing, unparseable, or outside the horizon.
func dayFor(raw string, dateOrd map[string]int, days int, sheet string, rowNum int) int {
	if raw == "" {
		return days
	}
	date, ok := parseDate(raw)
	if !ok {
		logger.Warn("LOAD", fmt.Sprintf("sheet %s row %d: unparseable date %q, clamped to day %d", sheet, rowNum, raw, days))
		return days
	}
	if ord, ok := dateOrd[dateKey(date)]; ok {
		return ord
	}
	return days
}

func loadCapability(f *excelize.File, in *model.Input, styleSet map[string]bool) error {
	m, err := readMatrix(f, sheetCapability, styleSet, 0)
	if err != nil {
		return err
	}
	for line, cols := range m {
		for style, raw := range cols {
			if v, ok := parseNumber(raw); ok && v != 0 {
				in.Capabilities = append(in.Capabilities, model.CapabilityRecord{Line: line, Style: style})
			}
		}
	}
	return nil
}

func loadPairExperience(f *excelize.File, in *model.Input, styleSet map[string]bool) error {
	m, err := readMatrix(f, sheetPairExp, styleSet, 1)
	if err != nil {
		// The sheet is optional: per-pair offsets default to zero.
		logger.Warn("LOAD", fmt.Sprintf("sheet %s unusable (%v), line-style experience defaults to 0", sheetPairExp, err))
		return nil
	}
	for line, cols := range m {
		for style, raw := range cols {
			if v, ok := parseNumber(raw); ok && v != 0 {
				in.PairExp = append(in.PairExp, model.LineStyleExperienceRecord{Line: line, Style: style, Days: v})
			}
		}
	}
	return nil
}

func loadCurve(f *excelize.File, in *model.Input) {
	for _, sheet := range curveSheets {
		tbl, err := readSheet(f, sheet, []string{"experience", "efficiency"})
		if err != nil {
			continue
		}
		var points []model.LearningCurveRecord
		for _, row := range tbl.rows {
			exp, ok1 := parseNumber(tbl.cell(row, "experience"))
			eff, ok2 := parseNumber(tbl.cell(row, "efficiency"))
			if ok1 && ok2 {
				points = append(points, model.LearningCurveRecord{Experience: exp, Efficiency: eff})
			}
		}
		if len(points) > 0 {
			sort.Slice(points, func(i, j int) bool { return points[i].Experience < points[j].Experience })
			in.Curve = points
			logger.Info("LOAD", fmt.Sprintf("learning curve: %d breakpoints from sheet %s", len(points), sheet))
			return
		}
	}
	logger.Warn("LOAD", "no learning curve found, applying the default curve")
}

// ---- sheet plumbing ----

// table is one sheet sliced below its detected header row.
type table struct {
	cols map[string]int
	rows [][]string
}

func (t *table) cell(row []string, col string) string {
	idx, ok := t.cols[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return normalize(row[idx])
}

// readSheet locates the header row carrying all required columns within the
// first headerScanRows rows and returns the data below it.
func readSheet(f *excelize.File, sheet string, required []string) (*table, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}
	scan := len(rows)
	if scan > headerScanRows {
		scan = headerScanRows
	}
	for r := 0; r < scan; r++ {
		cols := make(map[string]int)
		for c, raw := range rows[r] {
			name := strings.ToLower(normalize(raw))
			if name == "" {
				continue
			}
			if _, dup := cols[name]; !dup {
				cols[name] = c
			}
		}
		ok := true
		for _, req := range required {
			if _, found := cols[req]; !found {
				ok = false
				break
			}
		}
		if ok {
			return &table{cols: cols, rows: rows[r+1:]}, nil
		}
	}
	return nil, fmt.Errorf("sheet %s: missing required columns %v", sheet, required)
}

// readMatrix reads a line-by-style sheet: one row per line, one column per
// style. headerRow is a hint; when the hinted row holds no known style the
// surrounding rows are probed.
func readMatrix(f *excelize.File, sheet string, styleSet map[string]bool, headerRow int) (map[string]map[string]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	probe := []int{headerRow}
	for r := 0; r < headerScanRows; r++ {
		if r != headerRow {
			probe = append(probe, r)
		}
	}
	for _, r := range probe {
		if r >= len(rows) {
			continue
		}
		styleCols := make(map[int]string)
		for c, raw := range rows[r] {
			if name := normalize(raw); styleSet[name] {
				styleCols[c] = name
			}
		}
		if len(styleCols) == 0 {
			continue
		}
		m := make(map[string]map[string]string)
		for _, row := range rows[r+1:] {
			if len(row) == 0 {
				continue
			}
			line := normalize(row[0])
			if line == "" {
				continue
			}
			cols := make(map[string]string)
			for c, style := range styleCols {
				if c < len(row) {
					cols[style] = normalize(row[c])
				}
			}
			m[line] = cols
		}
		return m, nil
	}
	return nil, fmt.Errorf("sheet %s: no style columns recognised", sheet)
}

// ---- cell parsing ----

// normalize strips the whitespace junk hand-edited workbooks accumulate.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\u200b", "")
	return strings.TrimSpace(s)
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(normalize(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intOrDefault(s string, def int) int {
	if v, ok := parseNumber(s); ok {
		return int(v)
	}
	return def
}

// dateLayouts cover the formats the template has been seen to use.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"2-Jan-06",
	"02-Jan-06",
	"Jan 2, 2006",
}

func parseDate(s string) (time.Time, bool) {
	s = normalize(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	// Raw serial numbers appear when a date cell lost its format.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 59 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
