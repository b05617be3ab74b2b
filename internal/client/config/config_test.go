package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	assert.NotEmpty(t, cfg.RemoteDSN)
	assert.Equal(t, "gymsync.db", cfg.LocalDBPath)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
	assert.Empty(t, cfg.SyncSchedule)
	assert.Empty(t, cfg.OwnerID)
}

func TestParseJson_OverlaysOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"owner_id": "owner-1",
		"online_check_interval": "10s"
	}`), 0o600))

	oldArgs := os.Args
	os.Args = []string{"gymsync", "-c", path}
	t.Cleanup(func() { os.Args = oldArgs })

	var cfg Config
	cfg.LoadDefaults()
	parseJson(&cfg)

	assert.Equal(t, "owner-1", cfg.OwnerID)
	assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
	// untouched fields keep defaults
	assert.Equal(t, "gymsync.db", cfg.LocalDBPath)
}

func TestParseEnv_Overlays(t *testing.T) {
	t.Setenv("GYMSYNC_OWNER_ID", "owner-env")
	t.Setenv("GYMSYNC_ONLINE_CHECK_INTERVAL", "7s")
	t.Setenv("GYMSYNC_SYNC_SCHEDULE", "@every 5m")

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, "owner-env", cfg.OwnerID)
	assert.Equal(t, 7*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, "@every 5m", cfg.SyncSchedule)
}

func TestParseEnv_BadDurationIgnored(t *testing.T) {
	t.Setenv("GYMSYNC_ONLINE_CHECK_INTERVAL", "not-a-duration")

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestParseFlags_Overlays(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"gymsync", "-o", "owner-flag", "-i", "15", "-f", "other.db"}
	t.Cleanup(func() { os.Args = oldArgs })

	var cfg Config
	cfg.LoadDefaults()
	parseFlags(&cfg)

	assert.Equal(t, "owner-flag", cfg.OwnerID)
	assert.Equal(t, 15*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, "other.db", cfg.LocalDBPath)
}
