package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyClientID          = "google.client_id"
	keyTesseractPath     = "parser.tesseract_path"
	keyOCRTimeout        = "parser.ocr_timeout_seconds"
	keyMaxConcurrent     = "jobs.max_concurrent_requests"
	keyBatchSize         = "jobs.spreadsheet_batch_size"
	keyMaxRetries        = "jobs.max_retries"
	keyRetryDelay        = "jobs.retry_delay_seconds"
	keyRetentionHours    = "jobs.retention_hours"
	keyRequestTimeout    = "jobs.request_timeout_seconds"
	keySecretBackendName = "secrets.backend"
)

// SettingsService manages application settings. Non-secret values live in
// the config store; the client secret lives in a secret store entry and is
// cached after the first read.
type SettingsService struct {
	configStore     driven.ConfigStore
	secretStore     driven.SecretStore
	defaultClientID string

	mu           sync.RWMutex
	secret       string
	secretLoaded bool
}

// NewSettingsService creates a new settings service. defaultClientID is used
// when no client id is configured.
func NewSettingsService(configStore driven.ConfigStore, secretStore driven.SecretStore, defaultClientID string) *SettingsService {
	return &SettingsService{
		configStore:     configStore,
		secretStore:     secretStore,
		defaultClientID: defaultClientID,
	}
}

// ConfiguredSecretBackend returns the secret backend named in the config
// store. It is read before the secret store exists, so it cannot go
// through a SettingsService.
func ConfiguredSecretBackend(configStore driven.ConfigStore) domain.SecretBackend {
	backend := domain.SecretBackend(configStore.GetString(keySecretBackendName))
	if !backend.IsValid() {
		return domain.DefaultSettings().SecretBackend
	}
	return backend
}

// Settings returns the effective settings, including the client secret.
func (s *SettingsService) Settings(ctx context.Context) (domain.Settings, error) {
	secret, err := s.clientSecret(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	s.mu.RLock()
	settings := s.fromConfig()
	s.mu.RUnlock()

	settings.GoogleClientSecret = secret
	return settings.Sanitize(), nil
}

// View returns the user-facing settings.
func (s *SettingsService) View(ctx context.Context) (domain.SettingsView, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return domain.SettingsView{}, err
	}
	return settings.View(), nil
}

// Update applies a partial update. The client secret is reloaded from the
// secret store afterwards so the cache reflects what was persisted.
func (s *SettingsService) Update(ctx context.Context, update domain.SettingsUpdate) (domain.SettingsView, error) {
	current, err := s.Settings(ctx)
	if err != nil {
		return domain.SettingsView{}, err
	}
	next := update.Apply(current)

	s.mu.Lock()
	err = s.save(next)
	s.mu.Unlock()
	if err != nil {
		return domain.SettingsView{}, err
	}

	if update.GoogleClientSecret != nil {
		if err := s.saveSecret(ctx, *update.GoogleClientSecret); err != nil {
			return domain.SettingsView{}, err
		}
	}

	s.mu.Lock()
	s.secretLoaded = false
	s.mu.Unlock()

	return s.View(ctx)
}

// fromConfig reads non-secret settings. Caller holds mu.
func (s *SettingsService) fromConfig() domain.Settings {
	defaults := domain.DefaultSettings()

	settings := domain.Settings{
		GoogleClientID:        s.getString(keyClientID, s.defaultClientID),
		TesseractPath:         s.getString(keyTesseractPath, defaults.TesseractPath),
		OCRTimeoutSeconds:     s.getInt(keyOCRTimeout, defaults.OCRTimeoutSeconds),
		MaxConcurrentRequests: s.getInt(keyMaxConcurrent, defaults.MaxConcurrentRequests),
		SpreadsheetBatchSize:  s.getInt(keyBatchSize, defaults.SpreadsheetBatchSize),
		MaxRetries:            s.getInt(keyMaxRetries, defaults.MaxRetries),
		RetryDelaySeconds:     s.getFloat(keyRetryDelay, defaults.RetryDelaySeconds),
		JobRetentionHours:     s.getInt(keyRetentionHours, defaults.JobRetentionHours),
		RequestTimeoutSeconds: s.getInt(keyRequestTimeout, defaults.RequestTimeoutSeconds),
		SecretBackend:         domain.SecretBackend(s.getString(keySecretBackendName, string(defaults.SecretBackend))),
	}
	return settings
}

// save persists non-secret settings. Caller holds mu.
func (s *SettingsService) save(settings domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyClientID, settings.GoogleClientID},
		{keyTesseractPath, settings.TesseractPath},
		{keyOCRTimeout, settings.OCRTimeoutSeconds},
		{keyMaxConcurrent, settings.MaxConcurrentRequests},
		{keyBatchSize, settings.SpreadsheetBatchSize},
		{keyMaxRetries, settings.MaxRetries},
		{keyRetryDelay, settings.RetryDelaySeconds},
		{keyRetentionHours, settings.JobRetentionHours},
		{keyRequestTimeout, settings.RequestTimeoutSeconds},
		{keySecretBackendName, string(settings.SecretBackend)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

func (s *SettingsService) clientSecret(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.secretLoaded {
		secret := s.secret
		s.mu.RUnlock()
		return secret, nil
	}
	s.mu.RUnlock()

	blob, err := s.secretStore.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load client secret: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = string(blob)
	s.secretLoaded = true
	return s.secret, nil
}

func (s *SettingsService) saveSecret(ctx context.Context, secret string) error {
	if secret == "" {
		if err := s.secretStore.Clear(ctx); err != nil {
			return fmt.Errorf("clear client secret: %w", err)
		}
		return nil
	}
	if err := s.secretStore.Set(ctx, []byte(secret)); err != nil {
		return fmt.Errorf("save client secret: %w", err)
	}
	return nil
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}
