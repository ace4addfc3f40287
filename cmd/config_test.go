package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/clarionscope/internal/config"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project", "config.yaml")

	out, _, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigTemplate(), string(data))

	_, _, err = executeCommand(t, "config", "init", path)
	require.ErrorContains(t, err, "already exists")

	_, _, err = executeCommand(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestConfigSet(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(cfgPath))

	out, _, err := executeWithConfig(t, cfgPath, "config", "set", "workers", "8")
	require.NoError(t, err)
	assert.Equal(t, cfgPath+": workers = 8\n", out)

	_, a := newRootCmd()
	a.cfgFile = cfgPath
	require.NoError(t, a.loadConfig())
	assert.Equal(t, 8, a.cfg.Workers)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Files analysed concurrently during a scan", "comments survive")
}

func TestConfigSet_InvalidValueIsReverted(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(cfgPath))
	before, err := os.ReadFile(cfgPath)
	require.NoError(t, err)

	_, _, err = executeWithConfig(t, cfgPath, "config", "set", "output.format", "xml")
	require.ErrorContains(t, err, "output.format")

	after, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestSetConfigValue_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, setConfigValue(path, "watch.debounce", "1s"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debounce: 1s")

	other := filepath.Join(t.TempDir(), "config.yaml")
	require.Error(t, setConfigValue(other, "workers", "0"))
	assert.NoFileExists(t, other, "an invalid first write leaves nothing behind")
}
