package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, 10, s.MaxConcurrentRequests)
	assert.Equal(t, 100, s.SpreadsheetBatchSize)
	assert.Equal(t, 3, s.MaxRetries)
	assert.InDelta(t, 1.0, s.RetryDelaySeconds, 0.0001)
	assert.Equal(t, 24, s.JobRetentionHours)
	assert.Equal(t, "tesseract", s.TesseractPath)
	assert.Equal(t, SecretBackendFile, s.SecretBackend)
	assert.Equal(t, s, s.Sanitize())
}

func TestSettings_Sanitize(t *testing.T) {
	s := Settings{
		MaxConcurrentRequests: 0,
		SpreadsheetBatchSize:  -5,
		MaxRetries:            0,
		RetryDelaySeconds:     0.01,
		JobRetentionHours:     0,
		SecretBackend:         "keychain",
	}.Sanitize()

	assert.Equal(t, 1, s.MaxConcurrentRequests)
	assert.Equal(t, 1, s.SpreadsheetBatchSize)
	assert.Equal(t, 1, s.MaxRetries)
	assert.InDelta(t, 0.1, s.RetryDelaySeconds, 0.0001)
	assert.Equal(t, 1, s.JobRetentionHours)
	assert.Equal(t, 1, s.OCRTimeoutSeconds)
	assert.Equal(t, 1, s.RequestTimeoutSeconds)
	assert.Equal(t, "tesseract", s.TesseractPath)
	assert.Equal(t, SecretBackendFile, s.SecretBackend)
}

func TestSettings_SanitizeNaNDelay(t *testing.T) {
	s := Settings{RetryDelaySeconds: math.NaN()}.Sanitize()
	assert.InDelta(t, MinRetryDelaySeconds, s.RetryDelaySeconds, 0.0001)
}

func TestSettings_Durations(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, time.Second, s.RetryDelay())
	assert.Equal(t, 120*time.Second, s.RequestTimeout())
	assert.Equal(t, 60*time.Second, s.OCRTimeout())
	assert.Equal(t, 24*time.Hour, s.JobRetention())
}

func TestSettings_ViewHidesSecret(t *testing.T) {
	s := DefaultSettings()
	s.GoogleClientID = "client"
	s.GoogleClientSecret = "shh"

	v := s.View()

	assert.Equal(t, "client", v.GoogleClientID)
	assert.True(t, v.HasClientSecret)
}

func TestSettingsUpdate_Apply(t *testing.T) {
	id := "new-client"
	retries := 0
	delay := 2.5

	s := SettingsUpdate{
		GoogleClientID:    &id,
		MaxRetries:        &retries,
		RetryDelaySeconds: &delay,
	}.Apply(DefaultSettings())

	assert.Equal(t, "new-client", s.GoogleClientID)
	assert.Equal(t, 1, s.MaxRetries)
	assert.InDelta(t, 2.5, s.RetryDelaySeconds, 0.0001)
	assert.Equal(t, DefaultSpreadsheetBatchSize, s.SpreadsheetBatchSize)
}
