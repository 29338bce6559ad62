package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sewplan/internal/config"
	"sewplan/internal/db"
	"sewplan/internal/engine"
	"sewplan/internal/logger"
	"sewplan/internal/model"
	"sewplan/internal/report"
	"sewplan/internal/workbook"
)

var version = "dev"

func main() {
	cfg := config.Default()

	input := flag.String("input", "", "Path to the planning workbook (.xlsx)")
	outDir := flag.String("out", "result", "Output directory for the report and run history")
	iters := flag.Int("iters", cfg.MaxIterations, "Maximum search iterations")
	maxTime := flag.Int("time", cfg.MaxSeconds, "Maximum wall-clock seconds")
	seed := flag.Uint64("seed", cfg.Seed, "Random seed (same seed, same schedule)")
	tenure := flag.Int("tenure", cfg.TabuTenure, "Initial tabu tenure")
	workers := flag.Int("workers", cfg.Workers, "Parallel neighbour evaluations")
	verbose := flag.Bool("v", true, "Log search progress")
	flag.Parse()

	logger.Banner(version)

	if *input == "" {
		logger.Error("INPUT", "no workbook given, use -input <file.xlsx>")
		os.Exit(1)
	}
	cfg.MaxIterations = *iters
	cfg.MaxSeconds = *maxTime
	cfg.Seed = *seed
	cfg.TabuTenure = *tenure
	cfg.Workers = *workers

	if err := run(cfg, *input, *outDir, *verbose); err != nil {
		logger.Error("RUN", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, inputPath, outDir string, verbose bool) error {
	logger.Section("Load")
	in, err := workbook.Load(inputPath)
	if err != nil {
		return fmt.Errorf("read workbook %s: %w", inputPath, err)
	}
	logger.Info("LOAD", fmt.Sprintf("%d styles, %d lines, %d days, %d orders",
		len(in.Styles), len(in.Lines), in.Days, len(in.Orders)))

	p, err := model.NewProblem(in, model.CostParams{
		SetupCost:     cfg.SetupCost,
		ExpReward:     cfg.ExpReward,
		LatePenalty:   cfg.LatePenalty,
		DiscountAlpha: cfg.DiscountAlpha,
	})
	if err != nil {
		return fmt.Errorf("validate input: %w", err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	store, err := db.Open(outDir)
	if err != nil {
		return err
	}
	defer store.Close()

	// SIGINT stops the search at the next step boundary; the best schedule
	// found so far is still reported and persisted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Section("Solve")
	started := time.Now()
	search := engine.NewTabuSearch(p, engine.SearchParams{
		MaxIterations:      cfg.MaxIterations,
		MaxTime:            time.Duration(cfg.MaxSeconds) * time.Second,
		Tenure:             cfg.TabuTenure,
		MinTenure:          cfg.MinTenure,
		MaxTenure:          cfg.MaxTenure,
		IncreaseThreshold:  cfg.IncreaseThreshold,
		DecreaseThreshold:  cfg.DecreaseThreshold,
		DestroyProbability: cfg.DestroyProbability,
		Seed:               cfg.Seed,
		Workers:            cfg.Workers,
		Verbose:            verbose,
	})
	best, stats := search.Run(ctx)

	logger.Section("Report")
	reportPath := filepath.Join(outDir, "Production_Plan_Report.xlsx")
	if err := report.Export(p, best, reportPath); err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	logger.Success("REPORT", fmt.Sprintf("Wrote %s", reportPath))

	runID, err := store.SaveRun(db.RunRecord{
		StartedAt:  started,
		FinishedAt: time.Now(),
		InputFile:  filepath.Base(inputPath),
		Iterations: stats.Iterations,
		BestCost:   best.TotalCost,
		SetupCost:  best.TotalSetup,
		LateCost:   best.TotalLate,
		ExpReward:  best.TotalExp,
	}, best)
	if err != nil {
		return fmt.Errorf("persist run: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Saved run %s", runID))

	logger.Section("Summary")
	logger.Stats("iterations", stats.Iterations)
	logger.Stats("elapsed", stats.Elapsed.Round(time.Millisecond))
	logger.Stats("best cost", fmt.Sprintf("%.2f", best.TotalCost))
	logger.Stats("setup cost", fmt.Sprintf("%.2f", best.TotalSetup))
	logger.Stats("late cost", fmt.Sprintf("%.2f", best.TotalLate))
	logger.Stats("experience reward", fmt.Sprintf("%.2f", best.TotalExp))
	logger.Stats("changeovers", len(best.Changes))
	logger.Stats("mean incumbent cost", fmt.Sprintf("%.2f", stats.MeanCost))
	for op, st := range stats.Operators {
		logger.Stats("op "+op, fmt.Sprintf("accepted %d, improved %d", st.Accepted, st.Improved))
	}
	return nil
}
