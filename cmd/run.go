package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weberBen/geoopt/internal/cmaes"
	"github.com/weberBen/geoopt/internal/driver"
	"github.com/weberBen/geoopt/internal/opt"
	"github.com/weberBen/geoopt/internal/problem"
	"github.com/weberBen/geoopt/internal/store"
)

var (
	problemPath string
	outPath     string
	runDataDir  string
	polish      bool
	polishIters int
	seedFlag    int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long:  `Loads a problem definition, runs the constrained search and prints the solution.`,
	RunE:  runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&problemPath, "problem", "", "Problem definition file (required)")
	runCmd.Flags().StringVar(&outPath, "out", "", "Write full result JSON to this path")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Persist the run under this directory")
	runCmd.Flags().BoolVar(&polish, "polish", false, "Refine the solution with a local mayfly pass")
	runCmd.Flags().IntVar(&polishIters, "polish-iters", 50, "Iterations for the polish pass")
	runCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Random seed override (0 = from problem file)")

	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	p, err := problem.Load(problemPath)
	if err != nil {
		return err
	}

	model, err := p.Construction()
	if err != nil {
		return fmt.Errorf("failed to build construction: %w", err)
	}

	req, err := p.Request()
	if err != nil {
		return err
	}
	if seedFlag != 0 {
		req.Solver.Seed = seedFlag
	}

	slog.Info("Starting optimization",
		"problem", p.Name,
		"variables", len(req.Variables),
		"constraints", len(req.Constraints),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := driver.New(model, cmaes.NewOracle, consoleSink)

	start := time.Now()
	result, err := d.Optimize(ctx, req)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	if polish {
		optimizer := opt.NewMayfly(polishIters, 20, req.Solver.Seed)
		polished, err := driver.Polish(context.Background(), model, req, result, optimizer)
		if err != nil {
			slog.Warn("Polish pass failed, keeping search result", "error", err)
		} else {
			result = polished
		}
	}

	if runDataDir != "" {
		if err := persistRun(p, req, result, start); err != nil {
			slog.Error("Failed to persist run", "error", err)
		}
	}

	if outPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	printSummary(result, elapsed)
	return nil
}

// consoleSink logs the driver's event stream.
func consoleSink(ev driver.Event) {
	switch e := ev.(type) {
	case driver.RunStarted:
		slog.Info("Run started", "variables", e.Variables, "max_evaluations", e.MaxEvaluations)
	case driver.ProgressUpdated:
		slog.Info("Progress", "percent", fmt.Sprintf("%.1f", e.Percent), "evaluations", e.Evaluations)
	case driver.GenerationProgressed:
		slog.Debug("Generation complete",
			"generation", e.Generation,
			"objective", e.Objective,
			"best_objective", e.BestObjective,
			"feasible_seen", e.BestFeasibleSeen,
		)
	case driver.NewBest:
		slog.Info("New best solution", "objective", e.Objective, "soft_violation", e.SoftViolation)
	case driver.RunFailed:
		slog.Error("Run failed", "context", e.Context, "error", e.Message)
	}
}

func persistRun(p *problem.Problem, req driver.RunRequest, result *driver.RunResult, start time.Time) error {
	runStore, err := store.NewFSStore(runDataDir)
	if err != nil {
		return err
	}
	runID := uuid.New().String()
	record := &store.RunRecord{
		RunID:     runID,
		Problem:   p.Name,
		Request:   req,
		Result:    *result,
		StartTime: start,
		EndTime:   time.Now(),
	}
	if err := runStore.SaveRun(runID, record); err != nil {
		return err
	}
	slog.Info("Saved run", "run_id", runID, "dir", runStore.RunDir(runID))
	return nil
}

func printSummary(result *driver.RunResult, elapsed time.Duration) {
	status := "feasible"
	if !result.Feasible {
		status = "infeasible"
	}
	if result.Cancelled {
		status += " (cancelled)"
	}

	fmt.Printf("Optimization %s in %s: objective %.6g (movement %.6g, soft %.6g), %d evaluations, stop: %s\n",
		status, elapsed.Round(time.Millisecond),
		result.Objective, result.Movement, result.Soft,
		result.Evaluations, result.StopReason,
	)

	names := make([]string, 0, len(result.Values))
	for name := range result.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIABLE\tVALUE\tDELTA")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.6g\t%+.6g\n", name, result.Values[name], result.Deltas[name])
	}
	w.Flush()
}
