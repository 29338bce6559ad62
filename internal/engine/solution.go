package engine

import "sewplan/internal/model"

// Unassigned marks an assignment cell blanked by a destroy operator. It is
// only legal as an intermediate state; a completed Evaluate resolves every
// sentinel. An evaluation cut short by the prune ceiling returns its
// assignment as it stood, so sentinels on days not yet simulated remain.
const Unassigned int32 = -1

// Assignment is the decision variable: a dense line-major matrix of style
// ids, one per (line, day) slot, stored flat so a neighbour copy is a single
// bulk operation.
type Assignment []int32

// NewAssignment allocates an all-Unassigned matrix for the problem's slots.
func NewAssignment(p *model.Problem) Assignment {
	a := make(Assignment, p.Slots())
	for i := range a {
		a[i] = Unassigned
	}
	return a
}

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	c := make(Assignment, len(a))
	copy(c, a)
	return c
}

// Changeover records one style switch on a line: the line started day Day
// producing To after previously holding From (model.NoStyle when the line had
// no style yet).
type Changeover struct {
	Line int   `json:"line"`
	From int32 `json:"from"`
	To   int32 `json:"to"`
	Day  int   `json:"day"` // 1-based
}

// Solution is one fully evaluated schedule: the realised assignment plus the
// simulated production, shipment and cost trajectory. A Solution is immutable
// once returned by the evaluator; the search copies it when it becomes the
// new best.
type Solution struct {
	Assign Assignment `json:"assignment"`

	// Production is the quantity sewn by line l on day d of the style the
	// realised assignment holds in that slot, indexed l*Days+d.
	Production []float64 `json:"production"`
	// Produced is the per-style daily total across lines, [style][day].
	Produced [][]float64 `json:"produced"`
	// Shipment is [style][day].
	Shipment [][]float64 `json:"shipment"`

	Changes []Changeover `json:"changes"`

	// Experience and Efficiency are indexed l*Days+d.
	Experience []float64 `json:"experience"`
	Efficiency []float64 `json:"efficiency"`

	FinalBacklog []float64 `json:"final_backlog"`

	TotalSetup float64 `json:"total_setup"`
	TotalLate  float64 `json:"total_late"`
	TotalExp   float64 `json:"total_exp"`
	TotalCost  float64 `json:"total_cost"`

	// MoveType tags the operator that produced this candidate, for search
	// statistics. Empty for initial and re-evaluated solutions.
	MoveType string `json:"move_type,omitempty"`

	// Seed reproduces this evaluation exactly.
	Seed uint64 `json:"seed"`
}

// Clone deep-copies the solution.
func (s *Solution) Clone() *Solution {
	c := *s
	c.Assign = s.Assign.Clone()
	c.Production = append([]float64(nil), s.Production...)
	c.Experience = append([]float64(nil), s.Experience...)
	c.Efficiency = append([]float64(nil), s.Efficiency...)
	c.FinalBacklog = append([]float64(nil), s.FinalBacklog...)
	c.Changes = append([]Changeover(nil), s.Changes...)
	c.Produced = cloneMatrix(s.Produced)
	c.Shipment = cloneMatrix(s.Shipment)
	return &c
}

func cloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	c := make([][]float64, len(m))
	for i, row := range m {
		c[i] = append([]float64(nil), row...)
	}
	return c
}
