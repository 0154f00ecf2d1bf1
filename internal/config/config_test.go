package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{EnvProjectID, EnvDatabaseURL, EnvAPIKey, EnvConnectTimeout, EnvListenAddr, EnvWriteMode}

// clearEnv unsets every gauge variable for the duration of the test
func clearEnv(t *testing.T) {
	for _, key := range allEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	file := writeFile(t, tmpDir, "gauge.yml", `version: "1.0"
store:
  project_id: plant-north
  database_url: redis://localhost:6379/2
  api_key: s3cret
sync:
  connect_timeout: 2s
  mode: confirmed
server:
  listen: ":9090"
`)

	cfg, err := Load(Sources{File: file, EnvFile: filepath.Join(tmpDir, "none.env")})
	require.Error(t, err, "explicit env file must exist")

	cfg, err = Load(Sources{File: file, EnvFile: writeFile(t, tmpDir, ".env", "")})
	require.NoError(t, err)
	assert.Equal(t, "plant-north", cfg.Store.ProjectID)
	assert.Equal(t, 2*time.Second, cfg.Sync.ConnectTimeout)
	assert.Equal(t, DefaultDrainTimeout, cfg.Sync.DrainTimeout)
	assert.True(t, cfg.Confirmed())
	assert.Equal(t, ":9090", cfg.Server.Listen)

	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "s3cret", opts.Password)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	file := writeFile(t, tmpDir, "gauge.yml", `store:
  project_id: from-yaml
  database_url: redis://yaml:6379
`)
	envFile := writeFile(t, tmpDir, ".env", "GAUGE_PROJECT_ID=from-dotenv\nGAUGE_DATABASE_URL=redis://dotenv:6379\n")
	t.Setenv(EnvDatabaseURL, "redis://env:6379")
	t.Setenv(EnvConnectTimeout, "750ms")

	cfg, err := Load(Sources{File: file, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Store.ProjectID, ".env overrides yaml")
	assert.Equal(t, "redis://env:6379", cfg.Store.DatabaseURL, "environment overrides .env")
	assert.Equal(t, 750*time.Millisecond, cfg.Sync.ConnectTimeout)
	assert.False(t, cfg.Confirmed())
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
}

func TestLoad_DefaultsAreOptional(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(EnvProjectID, "plant")
	t.Setenv(EnvDatabaseURL, "redis://localhost:6379")

	cfg, err := Load(Sources{})
	require.NoError(t, err)
	assert.Equal(t, "plant", cfg.Store.ProjectID)
	assert.Equal(t, DefaultConnectTimeout, cfg.Sync.ConnectTimeout)
	assert.Equal(t, ModeOptimistic, cfg.Sync.Mode)
}

func TestLoad_MissingCredentials(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load(Sources{})
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.True(t, IsError(err))

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{EnvProjectID, EnvDatabaseURL}, cfgErr.Missing)
	assert.Contains(t, err.Error(), "missing GAUGE_PROJECT_ID, GAUGE_DATABASE_URL")
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	t.Run("explicit file must exist", func(t *testing.T) {
		_, err := Load(Sources{File: "/nonexistent/gauge.yml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
		assert.False(t, IsError(err))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		file := writeFile(t, t.TempDir(), "gauge.yml", "store:\n  - not\n   valid")
		_, err := Load(Sources{File: file})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("bad timeout in environment", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv(EnvConnectTimeout, "soon")
		_, err := Load(Sources{})
		require.Error(t, err)
		assert.True(t, IsError(err))
		assert.Contains(t, err.Error(), "is not a duration")
	})
}

func TestValidate(t *testing.T) {
	valid := func() GaugeConfig {
		return GaugeConfig{Store: StoreConfig{ProjectID: "plant", DatabaseURL: "redis://localhost:6379"}}
	}

	tests := []struct {
		name    string
		mutate  func(c *GaugeConfig)
		wantErr string
	}{
		{"valid", func(c *GaugeConfig) {}, ""},
		{"unsupported version", func(c *GaugeConfig) { c.Version = "2.0" }, "unsupported version: 2.0"},
		{"uppercase project", func(c *GaugeConfig) { c.Store.ProjectID = "Plant" }, "invalid project id 'Plant'"},
		{"trailing hyphen", func(c *GaugeConfig) { c.Store.ProjectID = "plant-" }, "invalid project id"},
		{"bad url", func(c *GaugeConfig) { c.Store.DatabaseURL = "http://localhost" }, EnvDatabaseURL},
		{"negative timeout", func(c *GaugeConfig) { c.Sync.ConnectTimeout = -time.Second }, "connect_timeout must be >= 0"},
		{"unknown mode", func(c *GaugeConfig) { c.Sync.Mode = "eventual" }, "invalid sync mode: eventual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProject(t *testing.T) {
	assert.NoError(t, ValidateProject("a"))
	assert.NoError(t, ValidateProject("plant-north-2"))
	assert.Error(t, ValidateProject("-plant"))
	assert.Error(t, ValidateProject("plant_north"))

	long := make([]byte, MaxProjectLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorContains(t, ValidateProject(string(long)), "too long")
}

func TestRead_SkipsValidation(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(EnvProjectID, "plant-a")

	cfg, err := Read(Sources{})
	require.NoError(t, err)
	assert.Equal(t, "plant-a", cfg.Store.ProjectID)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Empty(t, cfg.Sync.Mode, "defaults are filled by Validate only")
}

// chdir changes the working directory for the duration of the test
// and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
