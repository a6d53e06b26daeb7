package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rcarelay/internal/scenario"
	"rcarelay/pkg/logging"
)

// testOptions holds the flags of the test command.
type testOptions struct {
	scenariosDir string
	scenario     string
	tag          string
	relayAddr    string
	timeout      time.Duration
	parallel     int
	failFast     bool
	verbose      bool
	reportPath   string
	jsonOutput   bool
}

// errScenariosFailed is returned when at least one scenario did not pass.
var errScenariosFailed = errors.New("scenarios failed")

func newTestCmd() *cobra.Command {
	opts := &testOptions{}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the behavioral scenarios against a relay",
		Long: `Runs YAML scenarios that connect a planner and units to a relay, send
commands and check what every participant receives, including the frames the
relay forwards to the scene.

By default each scenario runs against a fresh in-process relay with its own
scene stub. With --relay the scenarios run against an already running relay
instead; steps that inspect the registry or the scene are then skipped.`,
		Example: `  rcarelay test                          # Run the built-in scenarios
  rcarelay test --scenario collision     # Run scenarios whose name contains "collision"
  rcarelay test --tag shutdown --verbose # Run tagged scenarios with per-step output
  rcarelay test --parallel 4 --fail-fast
  rcarelay test --scenarios ./my-scenarios --report-path ./reports
  rcarelay test --relay localhost:5555   # Run against a running relay`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.parallel < 1 || opts.parallel > 10 {
				return fmt.Errorf("parallel workers must be between 1 and 10, got %d", opts.parallel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.scenariosDir, "scenarios", "", "Directory of scenario files (default: built-in scenarios)")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "Run scenarios whose name contains this value")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Run scenarios carrying this tag")
	cmd.Flags().StringVar(&opts.relayAddr, "relay", "", "Run against a running relay at host:port")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Overall execution timeout")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 1, "Number of parallel workers (1-10)")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Stop on the first scenario that does not pass")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Show every step")
	cmd.Flags().StringVar(&opts.reportPath, "report-path", "", "Directory for a JSON report")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the suite result as JSON instead of the console report")

	_ = cmd.RegisterFlagCompletionFunc("scenario", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeScenarioNames(opts.scenariosDir), cobra.ShellCompDirectiveNoFileComp
	})
	cmd.MarkFlagsMutuallyExclusive("json", "verbose")

	return cmd
}

// completeScenarioNames lists the scenario names in dir, or the built-in ones.
func completeScenarioNames(dir string) []string {
	scenarios, err := scenario.NewLoader().LoadScenarios(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		names = append(names, sc.Name)
	}
	return names
}

func runTest(cmd *cobra.Command, opts *testOptions) error {
	// The relays under test log at warn unless --debug is set; the report is the output.
	level := logging.LevelWarn
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := scenario.NewLoader()
	scenarios, err := loader.LoadScenarios(opts.scenariosDir)
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	if len(scenarios) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠️  No scenarios found in %s\n", opts.scenariosDir)
		return nil
	}

	var instances scenario.InstanceManager
	if opts.relayAddr != "" {
		instances = scenario.NewExternalInstanceManager(opts.relayAddr)
	} else {
		instances = scenario.NewLocalInstanceManager()
	}

	var reporter scenario.Reporter
	if opts.jsonOutput {
		reporter = scenario.NewJSONReporter(cmd.OutOrStdout())
	} else {
		reporter = scenario.NewConsoleReporter(cmd.OutOrStdout(), opts.verbose, opts.reportPath)
	}

	config := scenario.Configuration{
		ScenarioPath: opts.scenariosDir,
		Scenario:     opts.scenario,
		Tag:          opts.tag,
		RelayAddr:    opts.relayAddr,
		Timeout:      opts.timeout,
		Parallel:     opts.parallel,
		FailFast:     opts.failFast,
		Verbose:      opts.verbose,
		ReportPath:   opts.reportPath,
	}

	result, err := scenario.NewRunner(instances, loader, reporter).Run(ctx, config, scenarios)
	if err != nil {
		return fmt.Errorf("scenario execution failed: %w", err)
	}
	if !result.Succeeded() {
		return fmt.Errorf("%w: %d failed, %d errored", errScenariosFailed, result.FailedScenarios, result.ErrorScenarios)
	}
	return nil
}
