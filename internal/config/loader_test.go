package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConfigPaths points the user and project layers at files inside dir and
// restores the originals when the test ends.
func mockConfigPaths(t *testing.T, dir string) (userPath, projectPath string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	})

	userPath = filepath.Join(dir, "user", configFileName)
	projectPath = filepath.Join(dir, "project", configFileName)
	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
	return userPath, projectPath
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	mockConfigPaths(t, t.TempDir())

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), loaded)
	assert.Equal(t, 5555, loaded.Listen.Port)
	assert.Equal(t, "localhost:6666", loaded.Scene.Address())
}

func TestLoadConfig_UserThenProjectOverride(t *testing.T) {
	userPath, projectPath := mockConfigPaths(t, t.TempDir())

	writeFile(t, userPath, `
listen:
  port: 7000
scene:
  host: scene.local
  reconnectInterval: 500ms
`)
	writeFile(t, projectPath, `
listen:
  port: 7001
connections:
  queueFullPolicy: disconnect
`)

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7001, loaded.Listen.Port, "project layer wins over user layer")
	assert.Equal(t, "scene.local", loaded.Scene.Host, "user value survives when project omits it")
	assert.Equal(t, DefaultScenePort, loaded.Scene.Port, "default survives when no layer sets it")
	assert.Equal(t, 500*time.Millisecond, loaded.Scene.ReconnectInterval)
	assert.Equal(t, QueueFullDisconnect, loaded.Connections.QueueFullPolicy)
	assert.Equal(t, DefaultOutboundQueueSize, loaded.Connections.OutboundQueueSize)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, projectPath := mockConfigPaths(t, t.TempDir())
	writeFile(t, projectPath, "listen: [unclosed")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading project config")
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	_, projectPath := mockConfigPaths(t, t.TempDir())
	writeFile(t, projectPath, "connections:\n  queueFullPolicy: block\n")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queueFullPolicy")
}

func TestLoadConfigFromPath_ExpandsEnvironment(t *testing.T) {
	t.Setenv("RCARELAY_TEST_SCENE", "sim-host")
	path := filepath.Join(t.TempDir(), "relay.yaml")
	writeFile(t, path, `
scene:
  host: ${RCARELAY_TEST_SCENE}
  port: ${RCARELAY_TEST_MISSING:-6700}
admin:
  enabled: true
`)

	loaded, err := LoadConfigFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sim-host", loaded.Scene.Host)
	assert.Equal(t, 6700, loaded.Scene.Port)
	assert.True(t, loaded.Admin.Enabled)
	assert.Equal(t, DefaultAdminPort, loaded.Admin.Port)
}

func TestLoadConfigFromPath_MissingFile(t *testing.T) {
	_, err := LoadConfigFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr string
	}{
		{"defaults are valid", func(*RelayConfig) {}, ""},
		{"listen port out of range", func(c *RelayConfig) { c.Listen.Port = 70000 }, "listen.port"},
		{"empty scene host", func(c *RelayConfig) { c.Scene.Host = "" }, "scene.host"},
		{"negative reconnect", func(c *RelayConfig) { c.Scene.ReconnectInterval = -time.Second }, "reconnectInterval"},
		{"zero scene queue", func(c *RelayConfig) { c.Scene.QueueSize = 0 }, "scene.queueSize"},
		{"zero read buffer", func(c *RelayConfig) { c.Connections.ReadBufferSize = 0 }, "readBufferSize"},
		{"zero outbound queue", func(c *RelayConfig) { c.Connections.OutboundQueueSize = 0 }, "outboundQueueSize"},
		{"admin port checked when enabled", func(c *RelayConfig) { c.Admin.Enabled = true; c.Admin.Port = -1 }, "admin.port"},
		{"admin port ignored when disabled", func(c *RelayConfig) { c.Admin.Port = -1 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestListenConfig_AddressAllInterfaces(t *testing.T) {
	assert.Equal(t, ":5555", ListenConfig{Port: 5555}.Address())
	assert.Equal(t, "127.0.0.1:0", ListenConfig{Host: "127.0.0.1"}.Address())
}
