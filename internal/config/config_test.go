package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://nm:nm@localhost/netmanager?sslmode=disable")
	t.Setenv("SECRET_KEY", "k")
	t.Setenv("JOB_SECRET", "s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "s", cfg.JobSecret)
}

func TestFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SECRET_KEY", "k")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("SECRET_KEY", "")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestProbeConfigStore_Defaults(t *testing.T) {
	s := NewProbeConfigStore("")
	cfg := s.Get()
	assert.Equal(t, []int{554, 80, 37777}, cfg.Ports)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 50, cfg.MaxConcurrency)
}

func TestProbeConfigStore_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ports: [80]\ntimeout_seconds: 5\nmax_concurrency: 10\n"), 0o600))

	s := NewProbeConfigStore(path)
	cfg := s.Get()
	assert.Equal(t, []int{80}, cfg.Ports)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxConcurrency)
}

func TestProbeConfigStore_BrokenFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0o600))

	s := NewProbeConfigStore(path)
	assert.Equal(t, []int{554, 80, 37777}, s.Get().Ports)
}
