package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSet_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, Set(path, "watch.debounce", "1s"))
	require.NoError(t, Set(path, "workers", "8"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Files analysed concurrently during a scan")

	cfg := loadViper(t, path)
	require.Equal(t, time.Second, cfg.Watch.Debounce)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, Defaults().Cache, cfg.Cache)
}

func TestSet_NullParentBecomesMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, Set(path, "index.path", "/var/idx.db"))
	require.Equal(t, "/var/idx.db", loadViper(t, path).Index.Path)
}

func TestSet_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir", "config.yaml")

	require.NoError(t, Set(path, "output.format", "json"))
	require.NoError(t, Set(path, "extensions", "[.clw]"))

	cfg := loadViper(t, path)
	require.Equal(t, "json", cfg.Output.Format)
	require.Equal(t, []string{".clw"}, cfg.Extensions)
}

func TestSet_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\n"), 0o600))

	require.ErrorContains(t, Set(path, "workers.count", "2"), "workers is not a mapping")
	require.ErrorContains(t, Set(path, "a..b", "2"), "invalid key")

	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))
	require.ErrorContains(t, Set(path, "workers", "2"), "root must be a mapping")

	require.NoError(t, os.WriteFile(path, []byte("a: [\n"), 0o600))
	require.ErrorContains(t, Set(path, "workers", "2"), "parsing config")
}
