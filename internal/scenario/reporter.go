package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// consoleReporter prints human readable progress.
type consoleReporter struct {
	out        io.Writer
	verbose    bool
	reportPath string
	mu         sync.Mutex
}

// NewConsoleReporter creates a reporter writing to out. With reportPath set a
// JSON report is also written to that directory.
func NewConsoleReporter(out io.Writer, verbose bool, reportPath string) Reporter {
	return &consoleReporter{out: out, verbose: verbose, reportPath: reportPath}
}

func (r *consoleReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *consoleReporter) ReportStart(config Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("🧪 Starting rcarelay scenarios\n")
	if config.RelayAddr != "" {
		r.printf("📡 Relay: %s (external)\n", config.RelayAddr)
	} else {
		r.printf("📡 Relay: in-process\n")
	}
	if r.verbose {
		r.printf("⚙️  Configuration:\n")
		r.printf("   • Scenario: %s\n", stringOrDefault(config.Scenario, "all"))
		r.printf("   • Tag: %s\n", stringOrDefault(config.Tag, "all"))
		r.printf("   • Parallel workers: %d\n", max(config.Parallel, 1))
		r.printf("   • Fail fast: %t\n", config.FailFast)
		if config.Timeout > 0 {
			r.printf("   • Timeout: %v\n", config.Timeout)
		}
		r.printf("   • Scenarios: %s\n", stringOrDefault(config.ScenarioPath, "built-in"))
		r.printf("\n")
	}
}

func (r *consoleReporter) ReportScenarioStart(sc Scenario) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("🎯 Starting scenario: %s\n", sc.Name)
	if sc.Description != "" {
		r.printf("   📝 %s\n", sc.Description)
	}
	if len(sc.Tags) > 0 {
		r.printf("   🏷️  Tags: %s\n", strings.Join(sc.Tags, ", "))
	}
	r.printf("   📋 Steps: %d\n", len(sc.Steps))
}

func (r *consoleReporter) ReportStepResult(res StepResult) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("   %s Step: %s (%v)\n", resultSymbol(res.Result), res.Step.DisplayName(), res.Duration.Round(time.Millisecond))
	if res.Error != "" {
		r.printf("     ❌ Error: %s\n", res.Error)
	}
	if res.Note != "" {
		r.printf("     ⏭️  %s\n", res.Note)
	}
}

func (r *consoleReporter) ReportScenarioResult(res ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	symbol := resultSymbol(res.Result)
	if !r.verbose {
		r.printf("%s %s (%v)\n", symbol, res.Scenario.Name, res.Duration.Round(time.Millisecond))
		if res.Error != "" {
			r.printf("   %s\n", res.Error)
		}
		return
	}
	r.printf("%s Scenario completed: %s (%v)\n", symbol, res.Scenario.Name, res.Duration.Round(time.Millisecond))
	if res.Error != "" {
		r.printf("   ❌ Error: %s\n", res.Error)
	}
	counts := map[Result]int{}
	for _, step := range res.StepResults {
		counts[step.Result]++
	}
	r.printf("   📊 Steps: %d passed", counts[ResultPassed])
	if n := counts[ResultFailed]; n > 0 {
		r.printf(", %d failed", n)
	}
	if n := counts[ResultError]; n > 0 {
		r.printf(", %d errors", n)
	}
	if n := counts[ResultSkipped]; n > 0 {
		r.printf(", %d skipped", n)
	}
	r.printf("\n\n")
}

func (r *consoleReporter) ReportSuiteResult(suite SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("\n🏁 Scenarios complete\n")
	r.printf("⏱️  Duration: %v\n", suite.Duration.Round(time.Millisecond))
	r.printf("📊 Results:\n")
	r.printf("   ✅ Passed: %d\n", suite.PassedScenarios)
	if suite.FailedScenarios > 0 {
		r.printf("   ❌ Failed: %d\n", suite.FailedScenarios)
	}
	if suite.ErrorScenarios > 0 {
		r.printf("   💥 Errors: %d\n", suite.ErrorScenarios)
	}
	if suite.SkippedScenarios > 0 {
		r.printf("   ⏭️  Skipped: %d\n", suite.SkippedScenarios)
	}
	r.printf("   📈 Total: %d\n", suite.TotalScenarios)

	if suite.Succeeded() {
		r.printf("\n🎉 All scenarios passed!\n")
	} else {
		r.printf("\n💔 Some scenarios failed\n")
	}

	if r.reportPath != "" {
		path, err := saveReport(r.reportPath, suite)
		if err != nil {
			r.printf("⚠️  Failed to save report: %v\n", err)
		} else {
			r.printf("📄 Report saved to: %s\n", path)
		}
	}
}

// saveReport writes suite as JSON into dir and returns the file path.
func saveReport(dir string, suite SuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("rcarelay-scenarios-%s.json", time.Now().Format("20060102-150405")))
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func resultSymbol(result Result) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultSkipped:
		return "⏭️"
	case ResultError:
		return "💥"
	default:
		return "❓"
	}
}

func stringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// jsonReporter prints only the final suite result as JSON
type jsonReporter struct {
	out io.Writer
}

// NewJSONReporter creates a reporter for machine consumption
func NewJSONReporter(out io.Writer) Reporter {
	return jsonReporter{out: out}
}

func (jsonReporter) ReportStart(Configuration)           {}
func (jsonReporter) ReportScenarioStart(Scenario)        {}
func (jsonReporter) ReportStepResult(StepResult)         {}
func (jsonReporter) ReportScenarioResult(ScenarioResult) {}

func (r jsonReporter) ReportSuiteResult(suite SuiteResult) {
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, "{\"error\": %q}\n", err.Error())
		return
	}
	fmt.Fprintln(r.out, string(data))
}
