package scenario

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"rcarelay/pkg/logging"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

type loader struct{}

// NewLoader creates a scenario loader
func NewLoader() Loader {
	return loader{}
}

// LoadScenarios loads every *.yaml or *.yml file in dir, sorted by file name.
// An empty dir loads the built-in scenarios.
func (l loader) LoadScenarios(dir string) ([]Scenario, error) {
	var fsys fs.FS
	root := "."
	if dir == "" {
		fsys = builtin
		root = "scenarios"
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("scenario path %s is not a directory", dir)
		}
		fsys = os.DirFS(dir)
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]Scenario, 0, len(names))
	seen := make(map[string]string)
	for _, name := range names {
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, name)))
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario %s: %w", name, err)
		}
		sc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario %s: %w", name, err)
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("scenario name %q used by both %s and %s", sc.Name, prev, name)
		}
		seen[sc.Name] = name
		scenarios = append(scenarios, sc)
	}
	logging.Debug("ScenarioLoader", "Loaded %d scenarios", len(scenarios))
	return scenarios, nil
}

// FilterScenarios keeps scenarios whose name contains config.Scenario and
// that carry config.Tag.
func (l loader) FilterScenarios(scenarios []Scenario, config Configuration) []Scenario {
	var out []Scenario
	for _, sc := range scenarios {
		if config.Scenario != "" && !strings.Contains(sc.Name, config.Scenario) {
			continue
		}
		if config.Tag != "" && !hasTag(sc, config.Tag) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

func hasTag(sc Scenario, tag string) bool {
	for _, t := range sc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Parse decodes and validates one scenario document.
func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, err
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks that every step has the fields its action needs.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	var errs []error
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step.DisplayName(), err))
		}
	}
	for i, step := range s.Cleanup {
		if err := step.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup step %d (%s): %w", i+1, step.DisplayName(), err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks the step's fields against its action.
func (s Step) Validate() error {
	if !knownActions[s.Action] {
		return fmt.Errorf("unknown action %q", s.Action)
	}
	switch s.Action {
	case ActionConnect:
		if s.Client == "" {
			return errors.New("client is required")
		}
		if hs := s.handshake(); len(hs) != 1 {
			return fmt.Errorf("handshake %q must be exactly one byte", hs)
		}
	case ActionSend, ActionExpect:
		if s.Client == "" {
			return errors.New("client is required")
		}
		if s.Data == "" {
			return errors.New("data is required")
		}
	case ActionExpectNone, ActionExpectClosed, ActionDisconnect:
		if s.Client == "" {
			return errors.New("client is required")
		}
	case ActionExpectScene:
		if s.Data == "" {
			return errors.New("data is required")
		}
	case ActionSleep:
		if s.Duration <= 0 {
			return errors.New("duration must be positive")
		}
	}
	if s.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

func (s Step) handshake() string {
	if s.Handshake != "" {
		return s.Handshake
	}
	return s.Client
}
