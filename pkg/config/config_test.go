package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8750, cfg.Port)
	assert.Equal(t, 3, cfg.Capture.BurstCount)
	assert.Equal(t, 2*time.Second, cfg.Capture.WarmupDelay)
	assert.Equal(t, "fswebcam", cfg.Capture.CameraCommand[0])
	assert.Equal(t, "http://ip-api.com/json/", cfg.Location.IPLookupURL)
	assert.Equal(t, 30, cfg.Connectivity.StartupAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Sync.PeriodicInterval)
	assert.True(t, cfg.Journal.Enabled)
	assert.Zero(t, cfg.Identity.AdminChatID)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "staging")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadProbeURL(t *testing.T) {
	t.Setenv("CONNECTIVITY_PROBE_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
}

func TestSplitCommand(t *testing.T) {
	assert.Empty(t, splitCommand(""))
	assert.Equal(t, []string{"fswebcam", "--no-banner", "-"}, splitCommand("  fswebcam  --no-banner - "))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"http://a", "http://b"}, splitAndTrim(" http://a, http://b ,"))
}
