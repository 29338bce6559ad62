// Package report turns a solved schedule into the two output records the
// planners consume: the per-line schedule grid and the per-style inventory
// ledger, plus their styled workbook rendering.
package report

import (
	"strconv"

	"gonum.org/v1/gonum/floats"

	"sewplan/internal/engine"
	"sewplan/internal/model"
)

// LineBlock is the five parallel rows of one line in the schedule grid.
// MaxEff mirrors Eff for now; the template reserves the row for a planned
// per-style efficiency ceiling that is not modelled yet.
type LineBlock struct {
	Line   string
	Styles []string
	Qty    []float64
	Eff    []float64
	Exp    []float64
	MaxEff []float64
}

// ScheduleReport is the whole grid: one block per line over the same day
// headers.
type ScheduleReport struct {
	DayHeaders []string // "02/01" style, or "T1".. when real dates are unknown
	WeekdayRow []string
	Blocks     []LineBlock
}

// StyleLedger is the nine-row day-by-day accounting of one style.
type StyleLedger struct {
	Style     string
	Demand    []float64
	FabricIn  []float64
	BegFabric []float64
	Producing []float64
	EndFabric []float64
	BegFG     []float64
	Shipping  []float64
	EndFG     []float64
	Backlog   []float64
}

// TotalProduced is the style's production summed over the horizon.
func (sl *StyleLedger) TotalProduced() float64 {
	return floats.Sum(sl.Producing)
}

// TotalShipped is the style's shipments summed over the horizon.
func (sl *StyleLedger) TotalShipped() float64 {
	return floats.Sum(sl.Shipping)
}

// BuildSchedule assembles the schedule grid from a solved instance.
func BuildSchedule(p *model.Problem, sol *engine.Solution) *ScheduleReport {
	T := p.Days
	r := &ScheduleReport{
		DayHeaders: dayHeaders(p),
		WeekdayRow: weekdayRow(p),
	}
	for l, name := range p.Lines {
		b := LineBlock{
			Line:   name,
			Styles: make([]string, T),
			Qty:    make([]float64, T),
			Eff:    make([]float64, T),
			Exp:    make([]float64, T),
			MaxEff: make([]float64, T),
		}
		for d := 0; d < T; d++ {
			idx := l*T + d
			b.Styles[d] = p.StyleName(sol.Assign[idx])
			b.Qty[d] = sol.Production[idx]
			b.Eff[d] = sol.Efficiency[idx]
			b.Exp[d] = sol.Experience[idx]
			b.MaxEff[d] = sol.Efficiency[idx]
		}
		r.Blocks = append(r.Blocks, b)
	}
	return r
}

// BuildLedgers reconstructs the per-style trajectories by day-by-day
// accounting over the solution, the same arithmetic the planners run by hand:
// fabric in minus production, finished goods plus production minus shipment.
func BuildLedgers(p *model.Problem, sol *engine.Solution) []*StyleLedger {
	T := p.Days
	ledgers := make([]*StyleLedger, 0, len(p.Styles))
	for s, name := range p.Styles {
		sl := &StyleLedger{
			Style:     name,
			Demand:    make([]float64, T),
			FabricIn:  make([]float64, T),
			BegFabric: make([]float64, T),
			Producing: make([]float64, T),
			EndFabric: make([]float64, T),
			BegFG:     make([]float64, T),
			Shipping:  make([]float64, T),
			EndFG:     make([]float64, T),
			Backlog:   make([]float64, T),
		}
		invFab := p.I0Fabric[s]
		invFG := p.I0Product[s]
		backlog := p.Backlog0[s]
		for d := 0; d < T; d++ {
			demand := p.Demand[s][d]
			received := p.FabricIn[s][d]
			produced := sol.Produced[s][d]

			sl.Demand[d] = demand
			sl.FabricIn[d] = received
			sl.Producing[d] = produced

			sl.BegFabric[d] = invFab
			invFab += received - produced
			sl.EndFabric[d] = invFab

			sl.BegFG[d] = invFG
			available := invFG + produced
			needed := demand + backlog
			shipped := available
			if needed < shipped {
				shipped = needed
			}
			invFG = available - shipped
			backlog = needed - shipped

			sl.Shipping[d] = shipped
			sl.EndFG[d] = invFG
			sl.Backlog[d] = backlog
		}
		ledgers = append(ledgers, sl)
	}
	return ledgers
}

func dayHeaders(p *model.Problem) []string {
	headers := make([]string, p.Days)
	for d := 0; d < p.Days; d++ {
		if d < len(p.Dates) {
			headers[d] = p.Dates[d].Format("02/01")
		} else {
			headers[d] = "T" + strconv.Itoa(d+1)
		}
	}
	return headers
}

func weekdayRow(p *model.Problem) []string {
	row := make([]string, p.Days)
	for d := 0; d < p.Days; d++ {
		if d < len(p.Dates) {
			row[d] = p.Dates[d].Weekday().String()
		}
	}
	return row
}
