package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"sewplan/internal/model"
)

// pruneSlackFrac sets the slack above the best cost before an in-progress
// evaluation is abandoned. The slack is relative with an absolute floor so
// the ceiling stays above the incumbent even when costs go negative (the
// experience reward can dominate).
const pruneSlackFrac = 0.2

// seedStride decorrelates per-iteration batch seeds.
const seedStride = 0x9E3779B97F4A7C15

// SearchParams configure one tabu-search run.
type SearchParams struct {
	MaxIterations int
	MaxTime       time.Duration

	Tenure            int
	MinTenure         int
	MaxTenure         int
	IncreaseThreshold int
	DecreaseThreshold int

	DestroyProbability float64
	Seed               uint64
	Workers            int
	Verbose            bool
}

// OperatorStats counts how often an operator's candidates were accepted and
// how often they improved the best-ever cost.
type OperatorStats struct {
	Accepted int `json:"accepted"`
	Improved int `json:"improved"`
}

// RunStats summarises a finished run.
type RunStats struct {
	Iterations  int
	Elapsed     time.Duration
	BestCost    float64
	MeanCost    float64 // mean incumbent cost across iterations
	CostHistory []float64
	Operators   map[string]*OperatorStats
}

// TabuSearch drives the outer optimisation loop: neighbour generation,
// tabu/aspiration selection, adaptive tenure, and termination.
type TabuSearch struct {
	p      *model.Problem
	params SearchParams
	eval   *Evaluator
	gen    *NeighborGenerator

	current  *Solution
	best     *Solution
	bestCost float64

	tabu   *tabuList
	tenure int

	noImprove      int
	consecImprove  int
	costs          []float64
	operatorCounts map[string]*OperatorStats
}

// NewTabuSearch wires the evaluator and generator for the problem.
func NewTabuSearch(p *model.Problem, params SearchParams) *TabuSearch {
	if params.Workers < 1 {
		params.Workers = 1
	}
	return &TabuSearch{
		p:              p,
		params:         params,
		eval:           NewEvaluator(p),
		gen:            NewNeighborGenerator(p, params.DestroyProbability, params.Workers),
		tenure:         params.Tenure,
		tabu:           newTabuList(params.Tenure),
		operatorCounts: make(map[string]*OperatorStats),
	}
}

// Run executes the search until the iteration budget, the wall clock, or the
// context ends it, whichever comes first. Budgets are polled at step
// boundaries, so an in-flight neighbour batch always completes. The returned
// solution is the best found, re-evaluated once without a prune ceiling so
// every derived field is current.
func (ts *TabuSearch) Run(ctx context.Context) (*Solution, *RunStats) {
	start := time.Now()

	ts.current = ts.eval.InitialSolution(ts.params.Seed)
	ts.best = ts.current.Clone()
	ts.bestCost = ts.current.TotalCost
	ts.costs = append(ts.costs, ts.bestCost)
	if ts.params.Verbose {
		log.Printf("[TABU] initial cost %.2f", ts.bestCost)
	}

	iters := 0
	for i := 0; i < ts.params.MaxIterations; i++ {
		if ctx.Err() != nil {
			if ts.params.Verbose {
				log.Printf("[TABU] cancelled at iteration %d", i)
			}
			break
		}
		if ts.params.MaxTime > 0 && time.Since(start) >= ts.params.MaxTime {
			if ts.params.Verbose {
				log.Printf("[TABU] time budget reached at iteration %d", i)
			}
			break
		}
		iters = i + 1

		slack := pruneSlackFrac * math.Abs(ts.bestCost)
		if slack < 1 {
			slack = 1
		}
		ceiling := ts.bestCost + slack
		if ceiling < 0 {
			// Running costs start at zero and dip below it only as the
			// experience reward accrues; a negative ceiling would prune every
			// candidate on day one.
			ceiling = 0
		}
		ts.eval.SetPruneCeiling(ceiling)
		batchSeed := ts.params.Seed + uint64(i+1)*seedStride
		neighbors := ts.gen.Generate(ts.current, ts.eval, batchSeed)
		if len(neighbors) == 0 {
			continue
		}
		sort.SliceStable(neighbors, func(a, b int) bool {
			return neighbors[a].TotalCost < neighbors[b].TotalCost
		})

		chosen, sig := ts.selectCandidate(neighbors)
		ts.tabu.Push(sig)
		ts.current = chosen
		ts.costs = append(ts.costs, chosen.TotalCost)

		improved := false
		if chosen.TotalCost < ts.bestCost {
			ts.best = chosen.Clone()
			ts.bestCost = chosen.TotalCost
			improved = true
			if ts.params.Verbose {
				log.Printf("[TABU] iteration %d: new best %.2f (%s)", i, ts.bestCost, chosen.MoveType)
			}
		}
		ts.recordOperator(chosen.MoveType, improved)
		ts.updateTenure(improved)
	}

	// Final re-evaluation of the best realised assignment with its recorded
	// seed and no prune ceiling, so every derived field is populated. A day
	// kept as a bridge because the requested next-day slot held the same
	// style is judged again against the realised next-day slot, so the
	// result can differ from the recorded best where the material rule
	// rewrote that slot.
	ts.eval.ClearPruneCeiling()
	final := ts.eval.Evaluate(ts.best.Assign, ts.best.Seed)

	stats := &RunStats{
		Iterations:  iters,
		Elapsed:     time.Since(start),
		BestCost:    final.TotalCost,
		MeanCost:    stat.Mean(ts.costs, nil),
		CostHistory: ts.costs,
		Operators:   ts.operatorCounts,
	}
	return final, stats
}

// selectCandidate walks the cost-sorted batch and returns the first
// candidate that either beats the best-ever cost (aspiration) or whose move
// signature is not tabu. When every candidate is a non-aspirating tabu move,
// the cheapest is accepted anyway.
func (ts *TabuSearch) selectCandidate(neighbors []*Solution) (*Solution, string) {
	for _, nb := range neighbors {
		sig := MoveSignature(ts.current.Assign, nb.Assign)
		if nb.TotalCost < ts.bestCost || !ts.tabu.Contains(sig) {
			return nb, sig
		}
	}
	first := neighbors[0]
	return first, MoveSignature(ts.current.Assign, first.Assign)
}

func (ts *TabuSearch) recordOperator(moveType string, improved bool) {
	if moveType == "" {
		return
	}
	st := ts.operatorCounts[moveType]
	if st == nil {
		st = &OperatorStats{}
		ts.operatorCounts[moveType] = st
	}
	st.Accepted++
	if improved {
		st.Improved++
	}
}

// updateTenure adapts the tabu tenure: a streak of non-improving iterations
// lengthens it by 2 (diversify), a streak of improving ones shortens it by 1
// (intensify). The queue is resized in place, keeping the newest entries.
func (ts *TabuSearch) updateTenure(improved bool) {
	if improved {
		ts.consecImprove++
		ts.noImprove = 0
		if ts.consecImprove >= ts.params.DecreaseThreshold {
			if ts.tenure > ts.params.MinTenure {
				ts.tenure--
				ts.tabu.Resize(ts.tenure)
			}
			ts.consecImprove = 0
		}
		return
	}
	ts.noImprove++
	ts.consecImprove = 0
	if ts.noImprove >= ts.params.IncreaseThreshold {
		if ts.tenure < ts.params.MaxTenure {
			ts.tenure += 2
			if ts.tenure > ts.params.MaxTenure {
				ts.tenure = ts.params.MaxTenure
			}
			ts.tabu.Resize(ts.tenure)
		}
		ts.noImprove = 0
	}
}

// MoveSignature identifies the transition between two assignments as the
// ascending sequence of (slot, from, to) triples over all differing slots.
// It is order-independent: two move paths touching the same slots the same
// way share a signature.
func MoveSignature(old, new Assignment) string {
	var b strings.Builder
	for idx := range old {
		if old[idx] != new[idx] {
			fmt.Fprintf(&b, "%d:%d>%d;", idx, old[idx], new[idx])
		}
	}
	return b.String()
}

// tabuList is a bounded FIFO of move signatures with O(1) membership.
// Signatures may repeat; membership counts balance eviction.
type tabuList struct {
	entries []string
	members map[string]int
	cap     int
}

func newTabuList(capacity int) *tabuList {
	return &tabuList{members: make(map[string]int), cap: capacity}
}

func (tl *tabuList) Contains(sig string) bool {
	return tl.members[sig] > 0
}

func (tl *tabuList) Push(sig string) {
	tl.entries = append(tl.entries, sig)
	tl.members[sig]++
	tl.evict()
}

// Resize changes the capacity, evicting oldest entries when shrinking.
func (tl *tabuList) Resize(capacity int) {
	tl.cap = capacity
	tl.evict()
}

func (tl *tabuList) evict() {
	for len(tl.entries) > tl.cap {
		oldest := tl.entries[0]
		tl.entries = tl.entries[1:]
		if tl.members[oldest] <= 1 {
			delete(tl.members, oldest)
		} else {
			tl.members[oldest]--
		}
	}
}

func (tl *tabuList) Len() int {
	return len(tl.entries)
}
