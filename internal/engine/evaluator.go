package engine

import (
	"math"

	"golang.org/x/exp/rand"

	"sewplan/internal/model"
)

// eps is the threshold below which an inventory counts as empty.
const eps = 1e-6

// Evaluator runs the per-day production simulation for one assignment and
// prices the result. It holds no per-run scratch state, so a single Evaluator
// may serve concurrent Evaluate calls; determinism comes from the seed passed
// to each call.
type Evaluator struct {
	p     *model.Problem
	prune float64
}

// NewEvaluator builds an evaluator for the problem with no prune ceiling.
func NewEvaluator(p *model.Problem) *Evaluator {
	return &Evaluator{p: p, prune: math.Inf(1)}
}

// SetPruneCeiling sets the running-cost cutoff above which an evaluation
// short-circuits and reports an infinite cost.
func (e *Evaluator) SetPruneCeiling(c float64) {
	e.prune = c
}

// ClearPruneCeiling removes the cutoff.
func (e *Evaluator) ClearPruneCeiling() {
	e.prune = math.Inf(1)
}

type lineState struct {
	current    int32
	exp        float64
	pendingExp float64
}

type prodCandidate struct {
	line int
	maxP float64
}

// Evaluate simulates the assignment and returns the fully populated Solution.
// The input need not be valid: styles a line cannot sew are replaced by a
// random allowed style, and Unassigned slots are resolved by the
// material-availability rule. The returned Solution carries the realised
// assignment, which may differ from the requested one wherever the
// material logic forced a switch.
//
// Evaluate is pure: the same (problem, assignment, prune ceiling, seed)
// always produces an identical Solution.
func (e *Evaluator) Evaluate(a Assignment, seed uint64) *Solution {
	p := e.p
	rng := rand.New(rand.NewSource(seed))
	L, S, T := len(p.Lines), len(p.Styles), p.Days

	assign := a.Clone()

	// Capability repair. Unassigned cells survive to the day loop, where the
	// material-availability rule fills them.
	for l := 0; l < L; l++ {
		for d := 0; d < T; d++ {
			s := assign[l*T+d]
			if s == Unassigned {
				continue
			}
			if s < 0 || int(s) >= S || !p.Enable[l][s] {
				assign[l*T+d] = randomAllowed(p, l, rng)
			}
		}
	}

	sol := &Solution{
		Assign:       assign,
		Production:   make([]float64, L*T),
		Produced:     makeMatrix(S, T),
		Shipment:     makeMatrix(S, T),
		Experience:   make([]float64, L*T),
		Efficiency:   make([]float64, L*T),
		FinalBacklog: make([]float64, S),
		Seed:         seed,
	}

	invFab := append([]float64(nil), p.I0Fabric...)
	invProd := append([]float64(nil), p.I0Product...)
	backlog := append([]float64(nil), p.Backlog0...)

	states := make([]lineState, L)
	for l := range states {
		states[l] = lineState{current: p.Y0[l], exp: p.Exp0[l]}
	}

	candidates := make([][]prodCandidate, S)
	var setupCost, lateCost, expReward float64

	for d := 0; d < T; d++ {
		t := d + 1

		if setupCost+lateCost-expReward > e.prune {
			sol.TotalCost = math.Inf(1)
			return sol
		}

		disc := p.Discount(t)

		// Phase 1: fabric receipts.
		for s := 0; s < S; s++ {
			invFab[s] += p.FabricReceipt(s, t)
		}

		// Phase 2: line decisions under the material-availability rule.
		for l := 0; l < L; l++ {
			st := &states[l]
			st.exp += st.pendingExp
			st.pendingExp = 0

			idx := l*T + d
			final := e.resolveStyle(assign, invFab, l, d, st.current, rng)
			assign[idx] = final

			if final != st.current {
				sol.Changes = append(sol.Changes, Changeover{Line: l, From: st.current, To: final, Day: t})
				setupCost += p.SetupCost * disc
				if !p.SameFamily(st.current, final) {
					st.exp = p.LExp0[l][final]
				}
			}

			sol.Experience[idx] = st.exp
			eff := p.Curve.Eff(st.exp)
			sol.Efficiency[idx] = eff
			expReward += st.exp * p.ExpReward

			if p.Hours[l][d] > 0 {
				if sam := p.SAM[final]; sam > 0 {
					maxP := p.BaseCapacity[l][d] * eff / sam
					candidates[final] = append(candidates[final], prodCandidate{line: l, maxP: maxP})
				}
			}
			st.current = final
		}

		// Phase 3: production realisation, fabric-limited and allocated
		// proportionally to each line's capacity.
		for s := 0; s < S; s++ {
			items := candidates[s]
			if len(items) == 0 {
				continue
			}
			var totalCap float64
			for _, it := range items {
				totalCap += it.maxP
			}
			actual := math.Min(totalCap, invFab[s])
			sol.Produced[s][d] = actual
			invFab[s] -= actual
			if totalCap > 0 {
				for _, it := range items {
					share := actual * it.maxP / totalCap
					sol.Production[it.line*T+d] = share
					// A line earns an experience day only when it ran at half
					// its capacity or more.
					if share >= 0.5*it.maxP {
						states[it.line].pendingExp = 1
					}
				}
			}
			candidates[s] = items[:0]
		}

		// Phase 4: shipments and backlog.
		for s := 0; s < S; s++ {
			finished := 0.0
			if fd := d - p.FinishLead[s]; fd >= 0 {
				finished = sol.Produced[s][fd]
			}
			invProd[s] += finished

			needed := backlog[s] + p.Demand[s][d]
			ship := math.Min(invProd[s], needed)
			sol.Shipment[s][d] = ship
			invProd[s] -= ship
			backlog[s] = needed - ship

			if backlog[s] > eps {
				lateCost += backlog[s] * p.LatePenalty[s] * disc
			}
		}
	}

	copy(sol.FinalBacklog, backlog)
	sol.TotalSetup = setupCost
	sol.TotalLate = lateCost
	sol.TotalExp = expReward
	sol.TotalCost = setupCost + lateCost - expReward
	return sol
}

// resolveStyle applies the material-availability rule to slot (l, d) and
// returns the style the line will actually hold. The assignment is the live
// working copy, so the look-ahead of later days sees earlier forced switches.
//
// A proposed style without fabric survives only as a valid bridge: the line
// held the same style yesterday and the next day proposes it again, so the
// line waits for fabric instead of switching. A trailing zero-production day
// is never a bridge.
func (e *Evaluator) resolveStyle(assign Assignment, invFab []float64, l, d int, current int32, rng *rand.Rand) int32 {
	p := e.p
	T := p.Days
	proposed := assign[l*T+d]

	if proposed != Unassigned {
		if invFab[proposed] > eps {
			return proposed
		}
		if current == proposed && d+1 < T && assign[l*T+d+1] == proposed {
			return proposed
		}
	}

	// Must switch away. Keeping the current style is the cheapest option when
	// its fabric is on hand.
	if current != model.NoStyle && invFab[current] > eps {
		return current
	}
	// Any allowed style with fabric; shuffled so the repair does not bias the
	// search toward low style ids.
	allowed := p.Allowed[l]
	order := rng.Perm(len(allowed))
	for _, i := range order {
		if invFab[allowed[i]] > eps {
			return allowed[i]
		}
	}
	// Nothing has fabric: hold what we have.
	if current != model.NoStyle {
		return current
	}
	if proposed != Unassigned {
		return proposed
	}
	return allowed[rng.Intn(len(allowed))]
}

// InitialSolution assigns each line the allowed style with the largest total
// demand over the horizon (smallest id on ties) for every day, then
// evaluates.
func (e *Evaluator) InitialSolution(seed uint64) *Solution {
	p := e.p
	T := p.Days
	a := NewAssignment(p)
	for l := range p.Lines {
		allowed := p.Allowed[l]
		best := allowed[0]
		bestDemand := p.TotalDemand(best)
		for _, s := range allowed[1:] {
			if d := p.TotalDemand(s); d > bestDemand {
				best, bestDemand = s, d
			}
		}
		for d := 0; d < T; d++ {
			a[l*T+d] = best
		}
	}
	return e.Evaluate(a, seed)
}

func randomAllowed(p *model.Problem, l int, rng *rand.Rand) int32 {
	allowed := p.Allowed[l]
	return allowed[rng.Intn(len(allowed))]
}

func makeMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
