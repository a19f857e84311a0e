package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether progress, timing and protocol lines are printed.
var Verbose = true

// Output is where those lines go. Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds wall-clock time per phase of a run.
type TimingStats struct {
	TotalTime      time.Duration
	DataLoadTime   time.Duration
	ModelInitTime  time.Duration
	PretrainTime   time.Duration
	EvaluationTime time.Duration
	AdaptTime      time.Duration
	HEInitTime     time.Duration
	HEEvalTime     time.Duration

	PretrainSteps int
	AdaptSteps    int
}

// Track adds the time since start to *d; use as defer stats.Track(&stats.X, time.Now()).
func Track(d *time.Duration, start time.Time) {
	*d += time.Since(start)
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintln(Output, "\nBreakdown by phase:")
	phase := func(name string, d time.Duration) {
		pct := 0.0
		if stats.TotalTime > 0 {
			pct = float64(d) / float64(stats.TotalTime) * 100
		}
		fmt.Fprintf(Output, "  %s: %v (%.1f%%)\n", name, d, pct)
	}
	phase("Data loading", stats.DataLoadTime)
	phase("Model initialization", stats.ModelInitTime)
	phase("Pre-training", stats.PretrainTime)
	phase("Adaptation", stats.AdaptTime)
	phase("Evaluation", stats.EvaluationTime)
	if stats.HEInitTime > 0 || stats.HEEvalTime > 0 {
		phase("HE initialization", stats.HEInitTime)
		phase("HE evaluation", stats.HEEvalTime)
	}
	fmt.Fprintln(Output, "\nPerformance metrics:")
	if stats.PretrainSteps > 0 {
		fmt.Fprintf(Output, "  Average pre-training step: %.1fµs\n", DurationUS(stats.PretrainTime)/float64(stats.PretrainSteps))
	}
	if stats.AdaptSteps > 0 {
		fmt.Fprintf(Output, "  Average adaptation step: %.1fµs\n", DurationUS(stats.AdaptTime)/float64(stats.AdaptSteps))
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
