package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"**/*.c", "**/*.h"}, cfg.Include)
	assert.False(t, cfg.PropagateDepsDefToDecl)
}

func TestValidateRejectsMissingRootOrInclude(t *testing.T) {
	cfg := Default()
	cfg.Root = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Include = nil
	assert.Error(t, cfg.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", FileName)

	cfg := Default()
	cfg.Root = dir
	cfg.TypedefsDependencies = true
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, dir, loaded.Root)
	assert.True(t, loaded.TypedefsDependencies)
}

func TestLoaderFindsAncestorConfig(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "src", "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	cfg := Default()
	cfg.Root = root
	cfg.Verbose = true
	require.NoError(t, cfg.SaveToFile(filepath.Join(root, FileName)))

	loaded, err := NewLoader(nil).Load(sub)
	require.NoError(t, err)
	assert.True(t, loaded.Verbose)
	assert.Equal(t, root, loaded.Root)
}

func TestLoaderFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	loaded, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Include, loaded.Include)
}
