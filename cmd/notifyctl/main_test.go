package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/notify-dispatch/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("SQS_QUEUE_URL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStats(t *testing.T) {
	out, err := run(t, "stats")
	require.NoError(t, err)

	var stats domain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.TotalEmailsSent)
	assert.Greater(t, stats.TemplatesCount, 0)
}

func TestSettingsSet(t *testing.T) {
	out, err := run(t, "settings", "set", "--max-per-day", "7", "--maintenance", "--editor", "ops")
	require.NoError(t, err)

	var s domain.AdminEmailSettings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 7, s.MaxEmailsPerRecipientPerDay)
	assert.True(t, s.MaintenanceMode)
	assert.True(t, s.SystemEnabled)
	assert.Equal(t, "ops", s.UpdatedBy)
}

func TestMigrateRequiresDatabase(t *testing.T) {
	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestSendUnknownCampaign(t *testing.T) {
	_, err := run(t, "send", "missing")
	assert.Error(t, err)
}
