package dnaconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9191
storage:
  out_dir: "` + filepath.ToSlash(tmpDir) + `"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, defaultMaxClients, cfg.Server.MaxClients)
	assert.Equal(t, defaultQueueCapacity, cfg.Queue.Capacity)
	assert.Equal(t, defaultWorkerCount, cfg.Workers.Count)
	assert.EqualValues(t, defaultRecvChunk, cfg.Server.RecvChunk)
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, defaultPort, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := "server:\n  port: [[[not valid\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DNAPIPE_SERVER_PORT", "7000")
	t.Setenv("INCHROSIL_OUT_DIR", tmpDir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, tmpDir, cfg.Storage.OutDir)
}

func TestLoad_MaxSeqLenFloor(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage:
  out_dir: "` + filepath.ToSlash(tmpDir) + `"
server:
  max_seq_len: 100
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	_, err := Load(configPath)
	assert.Error(t, err, "max_seq_len below the 2^30 floor must fail validation")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := GetDefaultConfig()
	cfg.Storage.OutDir = tmpDir
	cfg.Server.Port = 12345

	configPath := filepath.Join(tmpDir, "saved.yaml")
	require.NoError(t, SaveConfig(cfg, configPath))

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 12345, loaded.Server.Port)
	assert.Equal(t, tmpDir, loaded.Storage.OutDir)
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)
	assert.Equal(t, first, *cfg)
}

func TestValidate_RejectsMissingOutDir(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.OutDir = ""
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestGetDefaultConfigPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("XDG_CONFIG_HOME", "")
	path := GetDefaultConfigPath()
	assert.Contains(t, path, filepath.Join(home, ".config", "dnapipe"))
}

func TestWatch_NoFileOnDisk(t *testing.T) {
	tmpDir := t.TempDir()
	stop, err := Watch(filepath.Join(tmpDir, "missing.yaml"), func(*Config) {}, nil)
	require.NoError(t, err)
	stop()
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
server:
  port: 9191
storage:
  out_dir: "`+filepath.ToSlash(tmpDir)+`"
`), 0644))

	reloaded := make(chan *Config, 1)
	stop, err := Watch(configPath, func(cfg *Config) {
		reloaded <- cfg
	}, nil)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(configPath, []byte(`
server:
  port: 9292
storage:
  out_dir: "`+filepath.ToSlash(tmpDir)+`"
`), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9292, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestDurationDecodeHook(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage:
  out_dir: "` + filepath.ToSlash(tmpDir) + `"
server:
  shutdown_timeout: "5s"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
}
