package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Paths.DataDir)
	assert.NotEmpty(t, cfg.Paths.DBFile)
	assert.NotEmpty(t, cfg.Package.Launcher)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Install.CheckTimeout)
	assert.Equal(t, 300*time.Second, cfg.Install.CommandTimeout)
	assert.Equal(t, uint64(500), cfg.Install.MinFreeMB)
	assert.Equal(t, 7*24*time.Hour, cfg.Region.CacheTTL)
	assert.Equal(t, "start.sh", cfg.Package.Launcher)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEPCTL_REGION_OVERRIDE", "CN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "CN", cfg.Region.Override)
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()
	t.Setenv("DEPCTL_TEST_DIR", "/srv/depctl")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty path", input: "", want: ""},
		{name: "absolute path", input: "/usr/local/bin", want: "/usr/local/bin"},
		{name: "home expansion", input: "~/test", want: filepath.Join(homeDir, "test")},
		{name: "env expansion", input: "$DEPCTL_TEST_DIR/cache", want: "/srv/depctl/cache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandPath(tt.input))
		})
	}
}
