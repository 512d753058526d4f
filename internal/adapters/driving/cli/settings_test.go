package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

func TestSettingsShow(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.GoogleClientID = "123.apps.googleusercontent.com"
	settings.GoogleClientSecret = "shh"
	setupServices(t, &Services{Settings: &mockSettingsService{settings: settings}})

	out, err := runCommand(t, "", "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Client ID: 123.apps.googleusercontent.com")
	assert.Contains(t, out, "Client secret: set")
	assert.NotContains(t, out, "shh")
	assert.Contains(t, out, "Max concurrent requests: 10")
	assert.Contains(t, out, "Retry delay: 1s")
	assert.Contains(t, out, "Backend: file")
}

func TestSettings_DefaultsToShow(t *testing.T) {
	setupServices(t, &Services{Settings: &mockSettingsService{settings: domain.DefaultSettings()}})

	out, err := runCommand(t, "", "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "Client ID: (not set)")
	assert.Contains(t, out, "Client secret: (not set)")
}

func TestSettingsSet_OnlyChangedFlags(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultSettings()}
	setupServices(t, &Services{Settings: svc})

	out, err := runCommand(t, "", "settings", "set",
		"--client-id", "abc", "--max-concurrent", "4", "--retry-delay", "0.5", "--secret-backend", "sqlite")
	require.NoError(t, err)
	require.Len(t, svc.updates, 1)

	update := svc.updates[0]
	require.NotNil(t, update.GoogleClientID)
	assert.Equal(t, "abc", *update.GoogleClientID)
	require.NotNil(t, update.MaxConcurrentRequests)
	assert.Equal(t, 4, *update.MaxConcurrentRequests)
	require.NotNil(t, update.RetryDelaySeconds)
	assert.InDelta(t, 0.5, *update.RetryDelaySeconds, 1e-9)
	require.NotNil(t, update.SecretBackend)
	assert.Equal(t, domain.SecretBackendSQLite, *update.SecretBackend)
	assert.Nil(t, update.SpreadsheetBatchSize)
	assert.Nil(t, update.GoogleClientSecret)

	assert.Contains(t, out, "Settings saved.")
	assert.Contains(t, out, "next run")
	assert.Contains(t, out, "Max concurrent requests: 4")
}

func TestSettingsSet_ZeroIsClamped(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultSettings()}
	setupServices(t, &Services{Settings: svc})

	out, err := runCommand(t, "", "settings", "set", "--batch-size", "0")
	require.NoError(t, err)
	require.Len(t, svc.updates, 1)
	assert.Equal(t, 0, *svc.updates[0].SpreadsheetBatchSize)
	assert.Contains(t, out, "Spreadsheet batch size: 1")
}

func TestSettingsSet_InvalidBackend(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultSettings()}
	setupServices(t, &Services{Settings: svc})

	_, err := runCommand(t, "", "settings", "set", "--secret-backend", "keychain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown secret backend")
	assert.Empty(t, svc.updates)
}

func TestSettingsSet_NoFlagsShowsHelp(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultSettings()}
	setupServices(t, &Services{Settings: svc})

	out, err := runCommand(t, "", "settings", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "--client-id")
	assert.Empty(t, svc.updates)
}

func TestSettingsSecret(t *testing.T) {
	t.Run("saves", func(t *testing.T) {
		svc := &mockSettingsService{settings: domain.DefaultSettings()}
		setupServices(t, &Services{Settings: svc})

		out, err := runCommand(t, "GOCSPX-secret\n", "settings", "secret")
		require.NoError(t, err)
		require.Len(t, svc.updates, 1)
		assert.Equal(t, "GOCSPX-secret", *svc.updates[0].GoogleClientSecret)
		assert.Contains(t, out, "Client secret saved.")
		assert.NotContains(t, out, "GOCSPX-secret")
	})

	t.Run("empty clears", func(t *testing.T) {
		svc := &mockSettingsService{settings: domain.DefaultSettings()}
		setupServices(t, &Services{Settings: svc})

		out, err := runCommand(t, "\n", "settings", "secret")
		require.NoError(t, err)
		require.Len(t, svc.updates, 1)
		assert.Equal(t, "", *svc.updates[0].GoogleClientSecret)
		assert.Contains(t, out, "Client secret cleared.")
	})

	t.Run("update error", func(t *testing.T) {
		boom := errors.New("disk full")
		setupServices(t, &Services{Settings: &mockSettingsService{err: boom}})

		_, err := runCommand(t, "x\n", "settings", "secret")
		assert.ErrorIs(t, err, boom)
	})
}
