package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rcarelay/pkg/logging"
)

// runner implements the Runner interface
type runner struct {
	instances InstanceManager
	reporter  Reporter
	loader    Loader
}

// NewRunner creates a new scenario runner
func NewRunner(instances InstanceManager, loader Loader, reporter Reporter) Runner {
	return &runner{instances: instances, loader: loader, reporter: reporter}
}

// Run executes scenarios according to the configuration
func (r *runner) Run(ctx context.Context, config Configuration, scenarios []Scenario) (*SuiteResult, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	result := &SuiteResult{StartTime: time.Now()}
	r.reporter.ReportStart(config)

	filtered := r.loader.FilterScenarios(scenarios, config)
	result.TotalScenarios = len(filtered)
	result.ScenarioResults = make([]ScenarioResult, 0, len(filtered))

	if config.Parallel <= 1 {
		for _, sc := range filtered {
			scenarioResult := r.runScenario(ctx, sc)
			result.ScenarioResults = append(result.ScenarioResults, scenarioResult)
			r.updateCounters(result, scenarioResult)
			r.reporter.ReportScenarioResult(scenarioResult)
			if config.FailFast && !passed(scenarioResult.Result) {
				break
			}
		}
	} else {
		for _, scenarioResult := range r.runParallel(ctx, filtered, config) {
			result.ScenarioResults = append(result.ScenarioResults, scenarioResult)
			r.updateCounters(result, scenarioResult)
			r.reporter.ReportScenarioResult(scenarioResult)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	r.reporter.ReportSuiteResult(*result)
	return result, nil
}

// runParallel executes scenarios with a worker pool. Every scenario still
// gets its own instance.
func (r *runner) runParallel(ctx context.Context, scenarios []Scenario, config Configuration) []ScenarioResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan Scenario, len(scenarios))
	for _, sc := range scenarios {
		work <- sc
	}
	close(work)

	results := make(chan ScenarioResult, len(scenarios))
	var wg sync.WaitGroup
	for i := 0; i < min(config.Parallel, len(scenarios)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sc := range work {
				if ctx.Err() != nil {
					return
				}
				res := r.runScenario(ctx, sc)
				results <- res
				if config.FailFast && !passed(res.Result) {
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	var out []ScenarioResult
	for res := range results {
		out = append(out, res)
	}
	return out
}

func passed(r Result) bool {
	return r == ResultPassed || r == ResultSkipped
}

// runScenario executes a single scenario against a fresh instance
func (r *runner) runScenario(ctx context.Context, sc Scenario) ScenarioResult {
	result := ScenarioResult{
		Scenario:    sc,
		StartTime:   time.Now(),
		StepResults: make([]StepResult, 0, len(sc.Steps)+len(sc.Cleanup)),
		Result:      ResultPassed,
	}
	r.reporter.ReportScenarioStart(sc)

	finish := func() ScenarioResult {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result
	}

	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	inst, err := r.instances.CreateInstance(ctx, sc.Name)
	if err != nil {
		result.Result = ResultError
		result.Error = fmt.Sprintf("failed to create relay instance: %v", err)
		return finish()
	}
	result.InstanceID = inst.ID
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.instances.DestroyInstance(cleanupCtx, inst); err != nil {
			logging.Warn("ScenarioRunner", "Failed to destroy instance %s: %v", inst.ID, err)
		}
	}()

	sess := newSession(inst)
	defer sess.close()

	for _, step := range sc.Steps {
		stepResult := r.runStep(ctx, sess, step)
		result.StepResults = append(result.StepResults, stepResult)
		r.reporter.ReportStepResult(stepResult)
		if !passed(stepResult.Result) {
			result.Result = stepResult.Result
			result.Error = stepResult.Error
			break
		}
	}

	// Cleanup runs regardless of the main outcome.
	for _, step := range sc.Cleanup {
		stepResult := r.runStep(context.WithoutCancel(ctx), sess, step)
		result.StepResults = append(result.StepResults, stepResult)
		r.reporter.ReportStepResult(stepResult)
		if !passed(stepResult.Result) && result.Result == ResultPassed {
			result.Result = stepResult.Result
			result.Error = stepResult.Error
		}
	}

	return finish()
}

// runStep executes a single step
func (r *runner) runStep(ctx context.Context, sess *session, step Step) StepResult {
	result := StepResult{
		Step:      step,
		StartTime: time.Now(),
		Result:    ResultPassed,
	}

	err := sess.execute(ctx, step)
	switch {
	case err == nil:
	case errors.Is(err, errSkipped):
		result.Result = ResultSkipped
		result.Note = "relay or scene not observable from this process"
	case ctx.Err() != nil:
		result.Result = ResultError
		result.Error = fmt.Sprintf("step cancelled: %v", err)
	case step.Action == ActionConnect || step.Action == ActionSend || step.Action == ActionDisconnect:
		result.Result = ResultError
		result.Error = err.Error()
	default:
		result.Result = ResultFailed
		result.Error = err.Error()
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result
}

func (r *runner) updateCounters(suite *SuiteResult, res ScenarioResult) {
	switch res.Result {
	case ResultPassed:
		suite.PassedScenarios++
	case ResultFailed:
		suite.FailedScenarios++
	case ResultSkipped:
		suite.SkippedScenarios++
	case ResultError:
		suite.ErrorScenarios++
	}
}
