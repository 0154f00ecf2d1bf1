package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/gauge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	written, err := Initialize(dir, Params{Project: "plant-a"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, config.DefaultFile),
		filepath.Join(dir, config.DefaultEnvFile),
	}, written)

	info, err := os.Stat(filepath.Join(dir, config.DefaultEnvFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	env, err := os.ReadFile(filepath.Join(dir, config.DefaultEnvFile))
	require.NoError(t, err)
	assert.Contains(t, string(env), "GAUGE_PROJECT_ID=plant-a\n")
	assert.Contains(t, string(env), "GAUGE_DATABASE_URL="+DefaultDatabaseURL+"\n")

	t.Run("generated files load as configuration", func(t *testing.T) {
		for _, key := range []string{config.EnvProjectID, config.EnvDatabaseURL, config.EnvAPIKey, config.EnvConnectTimeout, config.EnvListenAddr, config.EnvWriteMode} {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
		cfg, err := config.Load(config.Sources{
			File:    filepath.Join(dir, config.DefaultFile),
			EnvFile: filepath.Join(dir, config.DefaultEnvFile),
		})
		require.NoError(t, err)
		assert.Equal(t, "plant-a", cfg.Store.ProjectID)
		assert.Equal(t, DefaultDatabaseURL, cfg.Store.DatabaseURL)
		assert.Equal(t, config.ModeOptimistic, cfg.Sync.Mode)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		_, err := Initialize(dir, Params{Project: "plant-a"}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "project already initialized")
		assert.Contains(t, err.Error(), config.DefaultFile)
		assert.Contains(t, err.Error(), config.DefaultEnvFile)
	})

	t.Run("force overwrites", func(t *testing.T) {
		_, err := Initialize(dir, Params{Project: "plant-b", DatabaseURL: "rediss://store.example:6380"}, true)
		require.NoError(t, err)
		yml, err := os.ReadFile(filepath.Join(dir, config.DefaultFile))
		require.NoError(t, err)
		assert.Contains(t, string(yml), "project_id: plant-b")
		assert.Contains(t, string(yml), "rediss://store.example:6380")
	})
}

func TestInitializeRejectsBadProject(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, Params{Project: "Plant A"}, false)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckExisting(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultEnvFile), []byte("X=1\n"), 0600))
	err := CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Found existing: .env")
}
