package config

import "runtime"

// Config holds the run parameters for the scheduler (in-memory representation).
// Flag parsing in main overrides individual fields; persistence of finished
// runs is handled by internal/db.
type Config struct {
	MaxIterations int `json:"max_iterations"`
	MaxSeconds    int `json:"max_seconds"`

	// Tabu parameters.
	TabuTenure        int `json:"tabu_tenure"`
	MinTenure         int `json:"min_tenure"`
	MaxTenure         int `json:"max_tenure"`
	IncreaseThreshold int `json:"increase_threshold"`
	DecreaseThreshold int `json:"decrease_threshold"`

	// DestroyProbability is the chance per iteration that the destroy-and-repair
	// operators contribute candidates on top of the local moves.
	DestroyProbability float64 `json:"destroy_probability"`

	// Cost model.
	DiscountAlpha float64 `json:"discount_alpha"`
	SetupCost     float64 `json:"setup_cost"`
	ExpReward     float64 `json:"exp_reward"`
	LatePenalty   float64 `json:"late_penalty"` // per style per unit per day

	Seed    uint64 `json:"seed"`
	Workers int    `json:"workers"`
}

// Default returns a Config with the defaults of the planning tool this
// replaces: 5000 iterations or 10 minutes, tenure 15 in [5, 30].
func Default() *Config {
	return &Config{
		MaxIterations:      5000,
		MaxSeconds:         600,
		TabuTenure:         15,
		MinTenure:          5,
		MaxTenure:          30,
		IncreaseThreshold:  50,
		DecreaseThreshold:  10,
		DestroyProbability: 0.3,
		DiscountAlpha:      0.05,
		SetupCost:          150,
		ExpReward:          1,
		LatePenalty:        50,
		Seed:               1,
		Workers:            runtime.NumCPU(),
	}
}
