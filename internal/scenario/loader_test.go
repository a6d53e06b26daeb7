package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarios_Builtin(t *testing.T) {
	scenarios, err := NewLoader().LoadScenarios("")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		names = append(names, sc.Name)
	}
	assert.Contains(t, names, "connect-unit")
	assert.Contains(t, names, "connect-planner")
	assert.Contains(t, names, "planner-to-unit-t")
	assert.Contains(t, names, "shutdown-broadcast")
	assert.Equal(t, "connect-unit", names[0], "sorted by file name")
}

func TestLoadScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(`
name: second
steps:
  - action: sleep
    duration: 10ms
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(`
name: first
timeout: 5s
steps:
  - action: connect
    client: t
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	scenarios, err := NewLoader().LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, 5*time.Second, scenarios[0].Timeout)
	assert.Equal(t, 10*time.Millisecond, scenarios[1].Steps[0].Duration)
}

func TestLoadScenarios_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	doc := []byte("name: same\nsteps:\n  - action: sleep\n    duration: 1ms\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), doc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), doc, 0o644))

	_, err := NewLoader().LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"same"`)
}

func TestLoadScenarios_MissingDirectory(t *testing.T) {
	_, err := NewLoader().LoadScenarios(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing name",
			doc:     "steps:\n  - action: sleep\n    duration: 1ms\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			doc:     "name: x\n",
			wantErr: "at least one step",
		},
		{
			name:    "unknown action",
			doc:     "name: x\nsteps:\n  - action: teleport\n",
			wantErr: `unknown action "teleport"`,
		},
		{
			name:    "connect without client",
			doc:     "name: x\nsteps:\n  - action: connect\n",
			wantErr: "client is required",
		},
		{
			name:    "multi-byte handshake",
			doc:     "name: x\nsteps:\n  - action: connect\n    client: unit1\n",
			wantErr: "exactly one byte",
		},
		{
			name:    "send without data",
			doc:     "name: x\nsteps:\n  - action: send\n    client: p\n",
			wantErr: "data is required",
		},
		{
			name:    "sleep without duration",
			doc:     "name: x\nsteps:\n  - action: sleep\n",
			wantErr: "duration must be positive",
		},
		{
			name:    "bad cleanup step",
			doc:     "name: x\nsteps:\n  - action: sleep\n    duration: 1ms\ncleanup:\n  - action: disconnect\n",
			wantErr: "cleanup step 1",
		},
		{
			name: "valid with alias handshake",
			doc:  "name: x\nsteps:\n  - action: connect\n    client: p1\n    handshake: p\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterScenarios(t *testing.T) {
	scenarios := []Scenario{
		{Name: "connect-unit", Tags: []string{"handshake", "smoke"}},
		{Name: "batch-fanout", Tags: []string{"routing"}},
		{Name: "unit-to-scene", Tags: []string{"scene", "smoke"}},
	}
	l := NewLoader()

	assert.Len(t, l.FilterScenarios(scenarios, Configuration{}), 3)
	assert.Len(t, l.FilterScenarios(scenarios, Configuration{Tag: "smoke"}), 2)
	assert.Len(t, l.FilterScenarios(scenarios, Configuration{Scenario: "unit"}), 2)

	got := l.FilterScenarios(scenarios, Configuration{Scenario: "unit", Tag: "scene"})
	require.Len(t, got, 1)
	assert.Equal(t, "unit-to-scene", got[0].Name)
}
