package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	m, err := NewManager()
	require.NoError(t, err)
	return m
}

func TestManager_Defaults(t *testing.T) {
	m := newTestManager(t)
	cfg := m.GetConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "symptom_rules", cfg.Database.Database)
	assert.Equal(t, 1.0, cfg.Scoring.MildWeight)
	assert.Equal(t, 2.0, cfg.Scoring.ModerateWeight)
	assert.Equal(t, 3.0, cfg.Scoring.SevereWeight)
	assert.Equal(t, 0.25, cfg.Scoring.FollowUpCapRatio)
	assert.Equal(t, 5, cfg.Scoring.DefaultLimit)
	assert.Equal(t, "sqlite", cfg.Feedback.Backend)
	assert.False(t, cfg.ExternalAPI.AIDiagnosis.Enabled)

	assert.NoError(t, m.Validate())
}

func TestManager_EnvironmentOverride(t *testing.T) {
	t.Setenv("SYMPTOM_DX_SERVER_PORT", "9090")
	t.Setenv("SYMPTOM_DX_SCORING_SEVERE_WEIGHT", "4.5")

	m := newTestManager(t)
	cfg := m.GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4.5, cfg.Scoring.SevereWeight)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Manager)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(m *Manager) { m.config.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing database host",
			mutate:  func(m *Manager) { m.config.Database.Host = "" },
			wantErr: "database host",
		},
		{
			name:    "non increasing weights",
			mutate:  func(m *Manager) { m.config.Scoring.SevereWeight = 1.5 },
			wantErr: "strictly increasing",
		},
		{
			name:    "cap ratio out of range",
			mutate:  func(m *Manager) { m.config.Scoring.FollowUpCapRatio = 1.5 },
			wantErr: "follow_up_cap_ratio",
		},
		{
			name: "remote enabled without URL",
			mutate: func(m *Manager) {
				m.config.ExternalAPI.AIDiagnosis.Enabled = true
				m.config.ExternalAPI.AIDiagnosis.BaseURL = ""
			},
			wantErr: "ai_diagnosis base URL",
		},
		{
			name:    "unknown feedback backend",
			mutate:  func(m *Manager) { m.config.Feedback.Backend = "mongodb" },
			wantErr: "invalid feedback backend",
		},
		{
			name: "postgres feedback without URL",
			mutate: func(m *Manager) {
				m.config.Feedback.Backend = "postgres"
				m.config.Feedback.PostgresURL = ""
			},
			wantErr: "feedback postgres URL",
		},
		{
			name:    "invalid log level",
			mutate:  func(m *Manager) { m.config.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			tt.mutate(m)

			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
