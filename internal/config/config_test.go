package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()

	assert.InDelta(t, 0.6, cfg.Classifier.ConfidenceFloor, 0.0001)
	assert.InDelta(t, 0.5, cfg.Assignment.InDepartmentThreshold, 0.0001)
	assert.InDelta(t, 0.4, cfg.Assignment.CrossDepartmentThreshold, 0.0001)
	assert.Equal(t, 5, cfg.Assignment.MaxWorkload)

	assert.Equal(t, 2, cfg.Escalation.UrgentHours)
	assert.Equal(t, 8, cfg.Escalation.HighHours)
	assert.Equal(t, 24, cfg.Escalation.MediumHours)
	assert.Equal(t, 48, cfg.Escalation.LowHours)
	assert.Equal(t, 4, cfg.Escalation.OverdueUrgentHours)
	assert.Equal(t, 72, cfg.Escalation.OverdueLowHours)

	assert.Equal(t, 7, cfg.Workflow.AutoCloseDays)
	assert.InDelta(t, 0.8, cfg.Balancer.OverloadUtilization, 0.0001)
	assert.Equal(t, 3, cfg.Balancer.MaxMovesPerSweep)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "concern-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Sweep.Interval())
	assert.Equal(t, time.Minute, cfg.Engine.Balancer.SnapshotTTL())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ENGINE_SWEEP_INTERVAL_SECONDS", "60")
	t.Setenv("ENGINE_MAX_WORKLOAD", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, time.Minute, cfg.Engine.Sweep.Interval())
	assert.Equal(t, 8, cfg.Engine.Assignment.MaxWorkload)
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestSweepIntervalFallback(t *testing.T) {
	s := SweepConfig{IntervalSeconds: 0}
	assert.Equal(t, 5*time.Minute, s.Interval())
}
