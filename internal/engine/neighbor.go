package engine

import (
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"sewplan/internal/model"
)

// Move type tags carried by candidate solutions.
const (
	MoveSwap           = "swap"
	MoveReassignBlock  = "reassign_block"
	MoveReassignSingle = "reassign_single"
	MoveDestroyRandom  = "destroy_random"
	MoveDestroySetup   = "destroy_worst_setup"
	MoveDestroyZone    = "destroy_zone"
)

// Destroy operators blank between these fractions of all slots.
const (
	destroyFracMin = 0.05
	destroyFracMax = 0.20
)

// NeighborGenerator produces batches of candidate schedules around a base
// solution. It is stateless between calls: every batch is a pure function of
// (base assignment, batch seed), and the base solution is never mutated.
type NeighborGenerator struct {
	p           *model.Problem
	destroyProb float64
	workers     int
}

// NewNeighborGenerator builds a generator. destroyProb is the per-batch
// chance of adding the destroy-and-repair candidates; workers bounds the
// concurrent evaluations (minimum 1).
func NewNeighborGenerator(p *model.Problem, destroyProb float64, workers int) *NeighborGenerator {
	if workers < 1 {
		workers = 1
	}
	return &NeighborGenerator{p: p, destroyProb: destroyProb, workers: workers}
}

type rawCandidate struct {
	assign   Assignment
	moveType string
}

// Generate builds and evaluates one candidate batch. Local moves make
// max(2L, 10) attempts, and attempts that would leave the assignment
// unchanged are dropped; with probability destroyProb each destroy operator
// adds one more. Candidates are evaluated concurrently,
// each with a seed derived from the batch seed and its index, so the batch
// is deterministic for a given seed regardless of worker count.
func (g *NeighborGenerator) Generate(base *Solution, ev *Evaluator, seed uint64) []*Solution {
	rng := rand.New(rand.NewSource(seed))

	var raws []rawCandidate
	n := 2 * len(g.p.Lines)
	if n < 10 {
		n = 10
	}
	for i := 0; i < n; i++ {
		if c, ok := g.localMove(base.Assign, rng); ok {
			raws = append(raws, c)
		}
	}

	if rng.Float64() < g.destroyProb {
		raws = append(raws,
			g.destroyRandom(base.Assign, rng),
			g.destroyWorstSetup(base.Assign, rng),
			g.destroyZone(base.Assign, rng),
		)
	}

	sols := make([]*Solution, len(raws))
	var grp errgroup.Group
	grp.SetLimit(g.workers)
	for i := range raws {
		grp.Go(func() error {
			s := ev.Evaluate(raws[i].assign, seed+uint64(i)+1)
			s.MoveType = raws[i].moveType
			sols[i] = s
			return nil
		})
	}
	grp.Wait()
	return sols
}

func (g *NeighborGenerator) localMove(base Assignment, rng *rand.Rand) (rawCandidate, bool) {
	p := g.p
	T := p.Days
	l := rng.Intn(len(p.Lines))

	moves := []string{MoveSwap, MoveReassignSingle}
	if T > 5 {
		moves = append(moves, MoveReassignBlock)
	}
	switch moves[rng.Intn(len(moves))] {

	case MoveSwap:
		if T < 2 {
			return rawCandidate{}, false
		}
		t1 := rng.Intn(T)
		t2 := rng.Intn(T - 1)
		if t2 >= t1 {
			t2++
		}
		if base[l*T+t1] == base[l*T+t2] {
			return rawCandidate{}, false
		}
		a := base.Clone()
		a[l*T+t1], a[l*T+t2] = a[l*T+t2], a[l*T+t1]
		return rawCandidate{assign: a, moveType: MoveSwap}, true

	case MoveReassignBlock:
		size := 2
		if span := T / 4; span > 2 {
			size += rng.Intn(span - 1)
		}
		start := rng.Intn(T - size + 1)
		style := randomAllowed(p, l, rng)
		a := base.Clone()
		changed := false
		for d := start; d < start+size; d++ {
			if a[l*T+d] != style {
				a[l*T+d] = style
				changed = true
			}
		}
		if !changed {
			return rawCandidate{}, false
		}
		return rawCandidate{assign: a, moveType: MoveReassignBlock}, true

	default: // reassign_single
		t := rng.Intn(T)
		style := randomAllowed(p, l, rng)
		if style == base[l*T+t] {
			return rawCandidate{}, false
		}
		a := base.Clone()
		a[l*T+t] = style
		return rawCandidate{assign: a, moveType: MoveReassignSingle}, true
	}
}

func (g *NeighborGenerator) destroyQuota(rng *rand.Rand) int {
	frac := destroyFracMin + rng.Float64()*(destroyFracMax-destroyFracMin)
	q := int(frac * float64(g.p.Slots()))
	if q < 1 {
		q = 1
	}
	return q
}

// destroyRandom blanks uniformly random slots.
func (g *NeighborGenerator) destroyRandom(base Assignment, rng *rand.Rand) rawCandidate {
	a := base.Clone()
	q := g.destroyQuota(rng)
	for _, idx := range rng.Perm(len(a))[:q] {
		a[idx] = Unassigned
	}
	return rawCandidate{assign: a, moveType: MoveDestroyRandom}
}

// destroyWorstSetup blanks slots that incur a changeover against the previous
// day, padding with random slots when there are not enough of them.
func (g *NeighborGenerator) destroyWorstSetup(base Assignment, rng *rand.Rand) rawCandidate {
	p := g.p
	T := p.Days
	a := base.Clone()
	q := g.destroyQuota(rng)

	var setupSlots []int
	for l := range p.Lines {
		for d := 1; d < T; d++ {
			if base[l*T+d] != base[l*T+d-1] {
				setupSlots = append(setupSlots, l*T+d)
			}
		}
	}
	rng.Shuffle(len(setupSlots), func(i, j int) {
		setupSlots[i], setupSlots[j] = setupSlots[j], setupSlots[i]
	})

	marked := 0
	for _, idx := range setupSlots {
		if marked == q {
			break
		}
		a[idx] = Unassigned
		marked++
	}
	if marked < q {
		for _, idx := range rng.Perm(len(a)) {
			if marked == q {
				break
			}
			if a[idx] != Unassigned {
				a[idx] = Unassigned
				marked++
			}
		}
	}
	return rawCandidate{assign: a, moveType: MoveDestroySetup}
}

// destroyZone blanks a contiguous time window around a random seed slot,
// spilling onto one neighbouring line when the window alone cannot fill the
// quota.
func (g *NeighborGenerator) destroyZone(base Assignment, rng *rand.Rand) rawCandidate {
	p := g.p
	L, T := len(p.Lines), p.Days
	a := base.Clone()
	q := g.destroyQuota(rng)

	l := rng.Intn(L)
	t := rng.Intn(T)
	window := q
	if window > T {
		window = T
	}
	start := t - window/2
	if start < 0 {
		start = 0
	}
	if start+window > T {
		start = T - window
	}
	marked := 0
	for d := start; d < start+window && marked < q; d++ {
		a[l*T+d] = Unassigned
		marked++
	}
	if marked < q && L > 1 {
		spill := l + 1
		if spill == L {
			spill = l - 1
		}
		for d := start; d < start+window && marked < q; d++ {
			a[spill*T+d] = Unassigned
			marked++
		}
	}
	return rawCandidate{assign: a, moveType: MoveDestroyZone}
}
