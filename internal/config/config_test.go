package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SLA_SCAN_INTERVAL", "")
	t.Setenv("SLA_WARNING_THRESHOLD_PERCENT", "")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Compliance.Interval)
	assert.Equal(t, 80.0, cfg.Compliance.WarningThresholdPercent)
	assert.Equal(t, 4, cfg.Compliance.Concurrency)
	assert.Equal(t, 200, cfg.Compliance.PageSize)
	assert.True(t, cfg.Compliance.RunOnStart)
	assert.Equal(t, time.Minute, cfg.Scheduler.TickInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.ReloadInterval)
	assert.Equal(t, 5*time.Second, cfg.Notification.RateMaxWait)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLA_SCAN_INTERVAL", "5m")
	t.Setenv("SLA_WARNING_THRESHOLD_PERCENT", "90")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "30")
	t.Setenv("SLA_SCAN_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Compliance.Interval)
	assert.Equal(t, 90.0, cfg.Compliance.WarningThresholdPercent)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 4, cfg.Compliance.Concurrency)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("SLA_WARNING_THRESHOLD_PERCENT", "120")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLA_WARNING_THRESHOLD_PERCENT")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Compliance: ComplianceConfig{Interval: time.Minute, WarningThresholdPercent: 100, Concurrency: 1, PageSize: 1},
		Scheduler:  SchedulerConfig{TickInterval: time.Second, ReloadInterval: time.Minute},
	}
	assert.NoError(t, valid.Validate())

	zeroThreshold := valid
	zeroThreshold.Compliance.WarningThresholdPercent = 0
	assert.Error(t, zeroThreshold.Validate())

	noTick := valid
	noTick.Scheduler.TickInterval = 0
	assert.Error(t, noTick.Validate())
}
