package scenario

import (
	"context"
	"time"
)

// Action names a step kind.
type Action string

const (
	// ActionConnect dials the relay and sends a handshake.
	ActionConnect Action = "connect"
	// ActionSend writes data verbatim on a client connection.
	ActionSend Action = "send"
	// ActionExpect waits until a client has received data.
	ActionExpect Action = "expect"
	// ActionExpectNone checks that a client receives nothing for the step timeout.
	ActionExpectNone Action = "expect_none"
	// ActionExpectClosed waits until the relay closes a client connection.
	ActionExpectClosed Action = "expect_closed"
	// ActionExpectScene waits until the scene stub has received a frame.
	ActionExpectScene Action = "expect_scene"
	// ActionDisconnect closes a client connection.
	ActionDisconnect Action = "disconnect"
	// ActionWaitRegistered waits until the relay registry matches.
	ActionWaitRegistered Action = "wait_registered"
	// ActionSleep pauses for the step duration.
	ActionSleep Action = "sleep"
)

var knownActions = map[Action]bool{
	ActionConnect:        true,
	ActionSend:           true,
	ActionExpect:         true,
	ActionExpectNone:     true,
	ActionExpectClosed:   true,
	ActionExpectScene:    true,
	ActionDisconnect:     true,
	ActionWaitRegistered: true,
	ActionSleep:          true,
}

// Result represents the result of scenario or step execution
type Result string

const (
	ResultPassed  Result = "PASSED"
	ResultFailed  Result = "FAILED"
	ResultSkipped Result = "SKIPPED"
	ResultError   Result = "ERROR"
)

// Configuration defines the overall scenario execution configuration
type Configuration struct {
	// ScenarioPath is a directory of *.yaml scenarios. Empty uses the built-in set.
	ScenarioPath string `yaml:"scenario_path,omitempty"`
	// Scenario filters by name substring
	Scenario string `yaml:"scenario,omitempty"`
	// Tag filters by scenario tag
	Tag string `yaml:"tag,omitempty"`
	// RelayAddr runs against an external relay instead of an in-process one
	RelayAddr string `yaml:"relay_addr,omitempty"`
	// Timeout is the overall execution timeout
	Timeout time.Duration `yaml:"timeout"`
	// Parallel is the number of parallel workers
	Parallel int `yaml:"parallel"`
	// FailFast stops execution on first failure
	FailFast bool `yaml:"fail_fast"`
	// Verbose enables per-step output
	Verbose bool `yaml:"verbose"`
	// ReportPath is a directory for a JSON report
	ReportPath string `yaml:"report_path,omitempty"`
}

// Scenario is one YAML scenario file.
type Scenario struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Steps       []Step        `yaml:"steps" json:"steps"`
	// Cleanup runs after Steps regardless of their outcome
	Cleanup []Step `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`
}

// Step is one action within a scenario.
type Step struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Action Action `yaml:"action" json:"action"`
	// Client is the alias of the connection the step acts on
	Client string `yaml:"client,omitempty" json:"client,omitempty"`
	// Handshake is the byte sent on connect. Defaults to Client.
	Handshake string `yaml:"handshake,omitempty" json:"handshake,omitempty"`
	// CloseOnShutdown makes a connected unit hang up when it receives "e"
	CloseOnShutdown bool `yaml:"close_on_shutdown,omitempty" json:"close_on_shutdown,omitempty"`
	// Data is the payload to send, or the exact bytes or frame expected
	Data string `yaml:"data,omitempty" json:"data,omitempty"`
	// Units, Planner and Waiting describe the registry for wait_registered
	Units   []string `yaml:"units,omitempty" json:"units,omitempty"`
	Planner *bool    `yaml:"planner,omitempty" json:"planner,omitempty"`
	Waiting *int     `yaml:"waiting,omitempty" json:"waiting,omitempty"`
	// Timeout bounds expect steps and is the quiet period for expect_none
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Duration is the pause for sleep
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// DisplayName returns Name or a generated label.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Client != "" {
		return string(s.Action) + " " + s.Client
	}
	return string(s.Action)
}

// SuiteResult represents the overall result of a run
type SuiteResult struct {
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	Duration         time.Duration    `json:"duration"`
	TotalScenarios   int              `json:"total_scenarios"`
	PassedScenarios  int              `json:"passed_scenarios"`
	FailedScenarios  int              `json:"failed_scenarios"`
	SkippedScenarios int              `json:"skipped_scenarios"`
	ErrorScenarios   int              `json:"error_scenarios"`
	ScenarioResults  []ScenarioResult `json:"scenario_results"`
}

// Succeeded reports whether no scenario failed or errored.
func (r SuiteResult) Succeeded() bool {
	return r.FailedScenarios == 0 && r.ErrorScenarios == 0
}

// ScenarioResult represents the result of a single scenario
type ScenarioResult struct {
	Scenario    Scenario      `json:"scenario"`
	Result      Result        `json:"result"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	StepResults []StepResult  `json:"step_results"`
	Error       string        `json:"error,omitempty"`
	// InstanceID identifies the relay instance the scenario ran against
	InstanceID string `json:"instance_id,omitempty"`
}

// StepResult represents the result of a single step
type StepResult struct {
	Step      Step          `json:"step"`
	Result    Result        `json:"result"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	// Note explains a skipped step
	Note string `json:"note,omitempty"`
}

// Runner executes scenarios
type Runner interface {
	Run(ctx context.Context, config Configuration, scenarios []Scenario) (*SuiteResult, error)
}

// Loader loads and filters scenarios
type Loader interface {
	// LoadScenarios loads every scenario in dir, or the built-in set for ""
	LoadScenarios(dir string) ([]Scenario, error)
	// FilterScenarios applies the configuration's name and tag filters
	FilterScenarios(scenarios []Scenario, config Configuration) []Scenario
}

// Reporter receives progress and results
type Reporter interface {
	ReportStart(config Configuration)
	ReportScenarioStart(scenario Scenario)
	ReportStepResult(stepResult StepResult)
	ReportScenarioResult(scenarioResult ScenarioResult)
	ReportSuiteResult(suiteResult SuiteResult)
}

// InstanceManager provides a relay for each scenario
type InstanceManager interface {
	CreateInstance(ctx context.Context, scenarioName string) (*Instance, error)
	DestroyInstance(ctx context.Context, instance *Instance) error
}
