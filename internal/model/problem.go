package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// NoStyle is the sentinel for "no style" in initial line states.
const NoStyle int32 = -1

// Problem is the immutable, id-encoded view of one scheduling instance.
// Styles and lines are interned to dense integer ids at construction; all
// hot-path tables are indexed by id, the name mappings exist for reporting.
type Problem struct {
	Lines  []string
	Styles []string
	Days   int
	Dates  []time.Time // len Days when real dates are known, else nil

	// Per style (by id).
	SAM         []float64
	FabricLead  []int
	FinishLead  []int
	LatePenalty []float64

	// Per line (by id).
	Sewers []int
	Exp0   []float64
	Y0     []int32 // initial style id or NoStyle

	// Per line per day (day index 0..Days-1 for ordinals 1..Days).
	Hours        [][]float64
	BaseCapacity [][]float64 // hours * 60 * sewers, in minutes

	// Capability.
	Enable  [][]bool  // [line][style]
	Allowed [][]int32 // [line] -> enabled style ids, ascending

	// Per style per day.
	Demand   [][]float64
	FabricIn [][]float64

	// Learning.
	LExp0 [][]float64 // [line][style] restart offset on changeover
	Curve *EfficiencyCurve

	// Initial inventories per style.
	I0Fabric  []float64
	I0Product []float64
	Backlog0  []float64

	SetupCost     float64
	ExpReward     float64
	DiscountAlpha float64

	sameFamily map[[2]int32]struct{}

	styleID map[string]int32
	lineID  map[string]int
}

// Defaults applied when the workbook leaves a field blank, matching the
// planning tool this replaces.
const (
	defaultLead       = 1
	defaultI0Fabric   = 1e6 // unknown on-hand fabric is treated as ample
	curveTableSlack   = 8
	minCurveTableDays = 64
)

// NewProblem validates the input records and builds the dense model.
// Validation failures are fatal: the returned error names the offending
// record.
func NewProblem(in *Input, costs CostParams) (*Problem, error) {
	if len(in.Styles) == 0 {
		return nil, fmt.Errorf("input has no styles")
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("input has no lines")
	}
	if in.Days <= 0 {
		return nil, fmt.Errorf("input has no working days")
	}

	p := &Problem{
		Days:          in.Days,
		Dates:         in.Dates,
		SetupCost:     costs.SetupCost,
		ExpReward:     costs.ExpReward,
		DiscountAlpha: costs.DiscountAlpha,
		styleID:       make(map[string]int32, len(in.Styles)),
		lineID:        make(map[string]int, len(in.Lines)),
		sameFamily:    make(map[[2]int32]struct{}),
	}

	// Intern styles in sorted-name order so ids are stable across runs.
	styles := append([]StyleRecord(nil), in.Styles...)
	sort.Slice(styles, func(i, j int) bool { return styles[i].ID < styles[j].ID })
	for _, s := range styles {
		if _, dup := p.styleID[s.ID]; dup {
			return nil, fmt.Errorf("style %q: duplicate record", s.ID)
		}
		if s.SAM <= 0 || math.IsNaN(s.SAM) {
			return nil, fmt.Errorf("style %q: SAM must be positive, got %v", s.ID, s.SAM)
		}
		if s.FabricLead < 0 || s.FinishLead < 0 {
			return nil, fmt.Errorf("style %q: lead times must be non-negative", s.ID)
		}
		p.styleID[s.ID] = int32(len(p.Styles))
		p.Styles = append(p.Styles, s.ID)
		p.SAM = append(p.SAM, s.SAM)
		p.FabricLead = append(p.FabricLead, s.FabricLead)
		p.FinishLead = append(p.FinishLead, s.FinishLead)
		p.LatePenalty = append(p.LatePenalty, costs.LatePenalty)
	}
	S := len(p.Styles)

	maxExp0 := 0.0
	for _, l := range in.Lines {
		if _, dup := p.lineID[l.ID]; dup {
			return nil, fmt.Errorf("line %q: duplicate record", l.ID)
		}
		if l.Sewers < 0 {
			return nil, fmt.Errorf("line %q: sewer count must be non-negative, got %d", l.ID, l.Sewers)
		}
		p.lineID[l.ID] = len(p.Lines)
		p.Lines = append(p.Lines, l.ID)
		p.Sewers = append(p.Sewers, l.Sewers)
		p.Exp0 = append(p.Exp0, l.Experience)
		if l.Experience > maxExp0 {
			maxExp0 = l.Experience
		}
	}
	L := len(p.Lines)

	// Capability matrix.
	p.Enable = make([][]bool, L)
	for l := range p.Enable {
		p.Enable[l] = make([]bool, S)
	}
	for _, c := range in.Capabilities {
		l, ok := p.lineID[c.Line]
		if !ok {
			return nil, fmt.Errorf("capability record references unknown line %q", c.Line)
		}
		s, ok := p.styleID[c.Style]
		if !ok {
			return nil, fmt.Errorf("capability record references unknown style %q", c.Style)
		}
		p.Enable[l][s] = true
	}
	p.Allowed = make([][]int32, L)
	for l := 0; l < L; l++ {
		for s := 0; s < S; s++ {
			if p.Enable[l][s] {
				p.Allowed[l] = append(p.Allowed[l], int32(s))
			}
		}
		if len(p.Allowed[l]) == 0 {
			return nil, fmt.Errorf("line %q has no enabled styles", p.Lines[l])
		}
	}

	// Initial styles, validated against the capability matrix.
	p.Y0 = make([]int32, L)
	for l := range p.Y0 {
		p.Y0[l] = NoStyle
	}
	for i, l := range in.Lines {
		if l.InitialStyle == "" {
			continue
		}
		s, ok := p.styleID[l.InitialStyle]
		if !ok {
			return nil, fmt.Errorf("line %q: unknown initial style %q", l.ID, l.InitialStyle)
		}
		if !p.Enable[i][s] {
			return nil, fmt.Errorf("line %q: initial style %q is not enabled for it", l.ID, l.InitialStyle)
		}
		p.Y0[i] = s
	}

	// Calendar.
	p.Hours = make([][]float64, L)
	p.BaseCapacity = make([][]float64, L)
	for l := 0; l < L; l++ {
		p.Hours[l] = make([]float64, p.Days)
		p.BaseCapacity[l] = make([]float64, p.Days)
	}
	for _, c := range in.Calendar {
		l, ok := p.lineID[c.Line]
		if !ok {
			return nil, fmt.Errorf("calendar record references unknown line %q", c.Line)
		}
		if c.Day < 1 || c.Day > p.Days {
			return nil, fmt.Errorf("calendar record for line %q has day %d outside 1..%d", c.Line, c.Day, p.Days)
		}
		if c.Hours < 0 {
			return nil, fmt.Errorf("calendar record for line %q day %d: negative working hours", c.Line, c.Day)
		}
		p.Hours[l][c.Day-1] = c.Hours
		p.BaseCapacity[l][c.Day-1] = c.Hours * 60 * float64(p.Sewers[l])
	}

	// Demand and fabric arrivals.
	p.Demand = make([][]float64, S)
	p.FabricIn = make([][]float64, S)
	for s := 0; s < S; s++ {
		p.Demand[s] = make([]float64, p.Days)
		p.FabricIn[s] = make([]float64, p.Days)
	}
	for _, o := range in.Orders {
		s, ok := p.styleID[o.Style]
		if !ok {
			return nil, fmt.Errorf("order record references unknown style %q", o.Style)
		}
		if o.Quantity < 0 {
			return nil, fmt.Errorf("order for style %q: negative quantity %v", o.Style, o.Quantity)
		}
		p.Demand[s][clampDay(o.DemandDay, p.Days)-1] += o.Quantity
		p.FabricIn[s][clampDay(o.FabricDay, p.Days)-1] += o.Quantity
	}

	// Per-pair learning offsets.
	p.LExp0 = make([][]float64, L)
	for l := range p.LExp0 {
		p.LExp0[l] = make([]float64, S)
	}
	for _, r := range in.PairExp {
		l, ok := p.lineID[r.Line]
		if !ok {
			return nil, fmt.Errorf("line-style experience record references unknown line %q", r.Line)
		}
		s, ok := p.styleID[r.Style]
		if !ok {
			return nil, fmt.Errorf("line-style experience record references unknown style %q", r.Style)
		}
		p.LExp0[l][s] = r.Days
		if r.Days > maxExp0 {
			maxExp0 = r.Days
		}
	}

	for _, pair := range in.SameFamily {
		a, ok := p.styleID[pair[0]]
		if !ok {
			return nil, fmt.Errorf("same-family pair references unknown style %q", pair[0])
		}
		b, ok := p.styleID[pair[1]]
		if !ok {
			return nil, fmt.Errorf("same-family pair references unknown style %q", pair[1])
		}
		p.sameFamily[famKey(a, b)] = struct{}{}
	}

	// Initial inventories: fabric defaults to "ample" when unknown.
	p.I0Fabric = make([]float64, S)
	p.I0Product = make([]float64, S)
	p.Backlog0 = make([]float64, S)
	for s := range p.I0Fabric {
		p.I0Fabric[s] = defaultI0Fabric
	}
	for _, r := range in.Inventory {
		s, ok := p.styleID[r.Style]
		if !ok {
			return nil, fmt.Errorf("inventory record references unknown style %q", r.Style)
		}
		if r.Fabric < 0 || r.Product < 0 || r.Backlog < 0 {
			return nil, fmt.Errorf("inventory record for style %q: negative quantity", r.Style)
		}
		p.I0Fabric[s] = r.Fabric
		p.I0Product[s] = r.Product
		p.Backlog0[s] = r.Backlog
	}

	tableDays := p.Days + int(maxExp0) + curveTableSlack
	if tableDays < minCurveTableDays {
		tableDays = minCurveTableDays
	}
	p.Curve = NewEfficiencyCurve(in.Curve, tableDays)

	return p, nil
}

func clampDay(day, days int) int {
	if day < 1 || day > days {
		return days
	}
	return day
}

func famKey(a, b int32) [2]int32 {
	if a > b {
		a, b = b, a
	}
	return [2]int32{a, b}
}

// SameFamily reports whether a changeover between the two styles keeps the
// line's accumulated experience.
func (p *Problem) SameFamily(from, to int32) bool {
	if from < 0 || to < 0 {
		return false
	}
	_, ok := p.sameFamily[famKey(from, to)]
	return ok
}

// Discount is the time-value weight applied to costs incurred on day t (1-based).
func (p *Problem) Discount(t int) float64 {
	return 1.0 / math.Pow(1.0+p.DiscountAlpha, float64(t))
}

// FabricReceipt is the quantity of fabric for style s becoming available on
// day t (1-based), i.e. the arrival of day t - fabricLead. Out-of-horizon
// indices contribute nothing.
func (p *Problem) FabricReceipt(s int, t int) float64 {
	d := t - p.FabricLead[s]
	if d < 1 || d > p.Days {
		return 0
	}
	return p.FabricIn[s][d-1]
}

// StyleID resolves a style name to its dense id.
func (p *Problem) StyleID(name string) (int32, bool) {
	id, ok := p.styleID[name]
	return id, ok
}

// StyleName resolves a dense id back to the style name. NoStyle maps to "".
func (p *Problem) StyleName(id int32) string {
	if id < 0 || int(id) >= len(p.Styles) {
		return ""
	}
	return p.Styles[id]
}

// LineID resolves a line name to its index.
func (p *Problem) LineID(name string) (int, bool) {
	id, ok := p.lineID[name]
	return id, ok
}

// Slots is the number of (line, day) cells in an assignment.
func (p *Problem) Slots() int {
	return len(p.Lines) * p.Days
}

// TotalDemand is the demand for style s summed over the horizon.
func (p *Problem) TotalDemand(s int32) float64 {
	var sum float64
	for _, q := range p.Demand[s] {
		sum += q
	}
	return sum
}
