package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigRequiresNetworkPath(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)

	cfg, err := NewConfig(Config{NetworkPath: "net.dat"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.WorkerCount, "worker count defaults to 1")
}

func TestExpandLanguagePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(""), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(""), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(""), 0o600))
	single := filepath.Join(dir, "notes.txt")

	paths, err := expandLanguagePaths([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.hcl"),
		filepath.Join(dir, "b.hcl"),
		single,
	}, paths)

	_, err = expandLanguagePaths([]string{filepath.Join(dir, "missing.hcl")})
	require.Error(t, err)
}

func TestRunWritesRateTable(t *testing.T) {
	dir := t.TempDir()
	networkPath := filepath.Join(dir, "net.dat")
	network := "H2 + O -> OH + H [10.0, 1000.0] 1d-10\n"
	require.NoError(t, os.WriteFile(networkPath, []byte(network), 0o600))

	tablePath := filepath.Join(dir, "rates.tab")
	cfg, err := NewConfig(Config{
		NetworkPath:   networkPath,
		RateTablePath: tablePath,
		LogLevel:      "error",
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a := NewApp(out, cfg)
	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(tablePath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
