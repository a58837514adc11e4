package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  default_models:
    anthropic: claude-sonnet-4
  temperature: 0.5
  max_tokens: 8192
hardware:
  max_warm_chunks: 16
  max_context_tokens: 200000
cap_directories:
  - /home/user/project
tools_directory: /home/user/.agentcore/tools
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", cfg.DefaultModel("anthropic"))
	assert.Equal(t, float32(0.5), cfg.Temperature())
	assert.Equal(t, 8192, cfg.MaxTokens())
	assert.Equal(t, 16, cfg.MaxWarmChunks())
	assert.Equal(t, 200000, cfg.MaxContextTokens())
	assert.Equal(t, []string{"/home/user/project"}, cfg.CapDirectories())
	assert.Equal(t, "/home/user/.agentcore/tools", cfg.ToolsDirectory)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":{"default_models":{"openai":"gpt-5"},"temperature":0.2,"max_tokens":4096}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", cfg.DefaultModel("openai"))
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("tools_directory = \"/opt/tools\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/tools", cfg.ToolsDirectory)
}

func TestLoad_UnrecognizedExtensionErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
