package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "sequential", cfg.JobIDStrategy)
	assert.Equal(t, uint64(1000), cfg.JobIDOffset)
	assert.Equal(t, "FreelanceMarketplace", cfg.ModuleName)
	assert.Equal(t, time.Duration(0), cfg.ConfirmTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APTOS_NETWORK", "devnet")
	t.Setenv("JOB_ID_OFFSET", "5000")
	t.Setenv("CONFIRM_TIMEOUT", "2m")
	t.Setenv("SNAPSHOT_S3_PATH_STYLE", "true")
	t.Setenv("RATE_LIMIT_CAPACITY", "not-a-number")

	cfg := Load()
	assert.Equal(t, uint64(5000), cfg.JobIDOffset)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	assert.True(t, cfg.SnapshotS3PathStyle)
	assert.Equal(t, 10, cfg.RateLimitCapacity)
	assert.Equal(t, "devnet", cfg.Network)
}
