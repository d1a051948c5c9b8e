// Command preduce runs the parallel, automatic test-case reducer: given
// an input file and an interestingness predicate, it searches for a
// substantially smaller file that the predicate still judges
// interesting.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	preduceconfig "github.com/testreduce/preduce/internal/config"
	"github.com/testreduce/preduce/internal/errs"
	"github.com/testreduce/preduce/internal/options"
	"github.com/testreduce/preduce/internal/predicate"
	"github.com/testreduce/preduce/internal/supervisor"
)

var (
	flagNumWorkers     int
	flagReducers       []string
	flagPredicate      []string
	flagLogPath        string
	flagWorkDir        string
	flagPrintHistogram bool

	rootCmd = &cobra.Command{
		Use:   "preduce <test-case>",
		Short: "Reduce a test case to a smaller one the predicate still accepts",
		Args:  cobra.ExactArgs(1),
		RunE:  runReduce,
	}
)

func main() {
	rootCmd.Flags().IntVarP(&flagNumWorkers, "workers", "w", 4, "number of concurrent worker actors")
	rootCmd.Flags().StringSliceVarP(&flagReducers, "reducer", "r", []string{"lines", "bytes"}, "ordered list of reducer names to run")
	rootCmd.Flags().StringSliceVarP(&flagPredicate, "predicate", "p", nil, "interestingness predicate command line (required)")
	rootCmd.Flags().StringVar(&flagLogPath, "log", "preduce.log", "path to the structured log file")
	rootCmd.Flags().StringVar(&flagWorkDir, "work-dir", "preduce-work", "base directory for scratch workspaces")
	rootCmd.Flags().BoolVar(&flagPrintHistogram, "histogram", true, "print the final per-reducer histogram to stdout")
	_ = rootCmd.MarkFlagRequired("predicate")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func runReduce(cmd *cobra.Command, args []string) error {
	env, err := preduceconfig.Load()
	if err != nil {
		return fmt.Errorf("loading environment configuration: %w", err)
	}

	opts := options.Options{
		TestCase:       args[0],
		Reducers:       flagReducers,
		NumWorkers:     flagNumWorkers,
		LogPath:        flagLogPath,
		WorkDir:        flagWorkDir,
		PrintHistogram: flagPrintHistogram,
	}
	applyEnvOverrides(&opts, env, cmd.Flags().Changed)

	if len(flagPredicate) == 0 {
		return errors.New("--predicate is required")
	}
	opts.Predicate = predicate.New(flagPredicate[0], flagPredicate[1:]...)

	return supervisor.Run(opts)
}

// applyEnvOverrides lets PREDUCE_-prefixed environment variables
// override flag defaults the user didn't explicitly set, so automation
// can drive the reducer without repeating those flags. The predicate is
// not among them: --predicate is always required.
func applyEnvOverrides(opts *options.Options, env preduceconfig.Env, flagSet func(name string) bool) {
	if env.NumWorkers > 0 && !flagSet("workers") {
		opts.NumWorkers = env.NumWorkers
	}
	if env.Reducers != "" && !flagSet("reducer") {
		opts.Reducers = strings.Split(env.Reducers, ",")
	}
	if env.LogPath != "" && !flagSet("log") {
		opts.LogPath = env.LogPath
	}
	if env.WorkDir != "" && !flagSet("work-dir") {
		opts.WorkDir = env.WorkDir
	}
	if env.PrintHistogram != nil && !flagSet("histogram") {
		opts.PrintHistogram = *env.PrintHistogram
	}
}

// exitCodeFor maps the supervisor's terminal errors to process exit
// codes: 0 for normal completion (interrupts shut down cleanly and
// return nil), non-zero for the initial-not-interesting, backup, and
// worker-spawn failures spec.md §6 calls out.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	var notInteresting errs.InitialNotInteresting
	if errors.As(err, &notInteresting) {
		return 1
	}

	var backupErr *errs.TestCaseBackupFailure
	if errors.As(err, &backupErr) {
		return 2
	}

	var spawnErr *errs.WorkerSpawnFailure
	if errors.As(err, &spawnErr) {
		return 3
	}

	return 1
}
