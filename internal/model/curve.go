package model

// EfficiencyCurve maps accumulated experience days to a fractional line
// efficiency via piecewise-linear interpolation between breakpoints, clamped
// to the first and last breakpoint outside that range. Experience accrues in
// whole-day steps, so lookups are served from a precomputed per-day table and
// cost one slice access.
type EfficiencyCurve struct {
	xs    []float64
	ys    []float64
	table []float64
}

// defaultCurvePoints is applied when the workbook carries no curve sheet.
var defaultCurvePoints = []LearningCurveRecord{
	{Experience: 1, Efficiency: 0.32},
	{Experience: 10, Efficiency: 0.66},
	{Experience: 17, Efficiency: 0.80},
}

// NewEfficiencyCurve builds a curve from breakpoints ordered by experience.
// maxDays bounds the lookup table; it must cover the horizon plus the largest
// initial experience offset.
func NewEfficiencyCurve(points []LearningCurveRecord, maxDays int) *EfficiencyCurve {
	if len(points) == 0 {
		points = defaultCurvePoints
	}
	c := &EfficiencyCurve{
		xs: make([]float64, len(points)),
		ys: make([]float64, len(points)),
	}
	for i, p := range points {
		c.xs[i] = p.Experience
		c.ys[i] = p.Efficiency
	}
	if last := int(c.xs[len(c.xs)-1]) + 1; maxDays < last {
		maxDays = last
	}
	c.table = make([]float64, maxDays+1)
	for d := range c.table {
		c.table[d] = c.interpolate(float64(d))
	}
	return c
}

// DefaultCurve returns the fallback curve used when no breakpoints were
// ingested.
func DefaultCurve(maxDays int) *EfficiencyCurve {
	return NewEfficiencyCurve(nil, maxDays)
}

func (c *EfficiencyCurve) interpolate(exp float64) float64 {
	if exp <= c.xs[0] {
		return c.ys[0]
	}
	last := len(c.xs) - 1
	if exp >= c.xs[last] {
		return c.ys[last]
	}
	for i := 0; i < last; i++ {
		x1, x2 := c.xs[i], c.xs[i+1]
		if exp >= x1 && exp <= x2 {
			y1, y2 := c.ys[i], c.ys[i+1]
			return y1 + (y2-y1)*(exp-x1)/(x2-x1)
		}
	}
	return c.ys[last]
}

// Eff returns the efficiency for the given experience in whole days.
func (c *EfficiencyCurve) Eff(exp float64) float64 {
	d := int(exp)
	if d < 0 {
		d = 0
	}
	if d >= len(c.table) {
		d = len(c.table) - 1
	}
	return c.table[d]
}
