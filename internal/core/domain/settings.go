package domain

import (
	"math"
	"time"
)

// SecretBackend selects where credentials are persisted.
type SecretBackend string

// Supported secret backends.
const (
	SecretBackendFile   SecretBackend = "file"
	SecretBackendSQLite SecretBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b SecretBackend) IsValid() bool {
	return b == SecretBackendFile || b == SecretBackendSQLite
}

// Settings are the user-tunable knobs. The client secret is never written
// to the config file; it is kept in the secret store.
type Settings struct {
	GoogleClientID        string
	GoogleClientSecret    string
	TesseractPath         string
	OCRTimeoutSeconds     int
	MaxConcurrentRequests int
	SpreadsheetBatchSize  int
	MaxRetries            int
	RetryDelaySeconds     float64
	JobRetentionHours     int
	RequestTimeoutSeconds int
	SecretBackend         SecretBackend
}

// Setting defaults.
const (
	DefaultTesseractPath         = "tesseract"
	DefaultOCRTimeoutSeconds     = 60
	DefaultMaxConcurrentRequests = 10
	DefaultSpreadsheetBatchSize  = 100
	DefaultMaxRetries            = 3
	DefaultRetryDelaySeconds     = 1.0
	DefaultJobRetentionHours     = 24
	DefaultRequestTimeoutSeconds = 120

	// MinRetryDelaySeconds is the floor for both the configured base delay
	// and every computed backoff.
	MinRetryDelaySeconds = 0.1
)

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		TesseractPath:         DefaultTesseractPath,
		OCRTimeoutSeconds:     DefaultOCRTimeoutSeconds,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		SpreadsheetBatchSize:  DefaultSpreadsheetBatchSize,
		MaxRetries:            DefaultMaxRetries,
		RetryDelaySeconds:     DefaultRetryDelaySeconds,
		JobRetentionHours:     DefaultJobRetentionHours,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		SecretBackend:         SecretBackendFile,
	}
}

// Sanitize clamps every numeric setting into its valid range.
func (s Settings) Sanitize() Settings {
	s.MaxConcurrentRequests = max(1, s.MaxConcurrentRequests)
	s.SpreadsheetBatchSize = max(1, s.SpreadsheetBatchSize)
	s.MaxRetries = max(1, s.MaxRetries)
	s.JobRetentionHours = max(1, s.JobRetentionHours)
	s.OCRTimeoutSeconds = max(1, s.OCRTimeoutSeconds)
	s.RequestTimeoutSeconds = max(1, s.RequestTimeoutSeconds)
	if math.IsNaN(s.RetryDelaySeconds) || s.RetryDelaySeconds < MinRetryDelaySeconds {
		s.RetryDelaySeconds = MinRetryDelaySeconds
	}
	if s.TesseractPath == "" {
		s.TesseractPath = DefaultTesseractPath
	}
	if !s.SecretBackend.IsValid() {
		s.SecretBackend = SecretBackendFile
	}
	return s
}

// Credentials returns the OAuth client identity.
func (s Settings) Credentials() ClientCredentials {
	return ClientCredentials{ClientID: s.GoogleClientID, ClientSecret: s.GoogleClientSecret}
}

// RetryDelay returns the base backoff delay.
func (s Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds * float64(time.Second))
}

// RequestTimeout returns the deadline applied to each remote call.
func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// OCRTimeout returns the deadline for one OCR invocation.
func (s Settings) OCRTimeout() time.Duration {
	return time.Duration(s.OCRTimeoutSeconds) * time.Second
}

// JobRetention returns how long job records are kept.
func (s Settings) JobRetention() time.Duration {
	return time.Duration(s.JobRetentionHours) * time.Hour
}

// SettingsView is the settings as shown to users; the secret is reduced to
// a presence flag.
type SettingsView struct {
	GoogleClientID        string        `json:"google_client_id"`
	HasClientSecret       bool          `json:"has_client_secret"`
	TesseractPath         string        `json:"tesseract_path"`
	OCRTimeoutSeconds     int           `json:"ocr_timeout_seconds"`
	MaxConcurrentRequests int           `json:"max_concurrent_requests"`
	SpreadsheetBatchSize  int           `json:"spreadsheet_batch_size"`
	MaxRetries            int           `json:"max_retries"`
	RetryDelaySeconds     float64       `json:"retry_delay_seconds"`
	JobRetentionHours     int           `json:"job_retention_hours"`
	RequestTimeoutSeconds int           `json:"request_timeout_seconds"`
	SecretBackend         SecretBackend `json:"secret_backend"`
}

// View returns the user-facing form of s.
func (s Settings) View() SettingsView {
	return SettingsView{
		GoogleClientID:        s.GoogleClientID,
		HasClientSecret:       s.GoogleClientSecret != "",
		TesseractPath:         s.TesseractPath,
		OCRTimeoutSeconds:     s.OCRTimeoutSeconds,
		MaxConcurrentRequests: s.MaxConcurrentRequests,
		SpreadsheetBatchSize:  s.SpreadsheetBatchSize,
		MaxRetries:            s.MaxRetries,
		RetryDelaySeconds:     s.RetryDelaySeconds,
		JobRetentionHours:     s.JobRetentionHours,
		RequestTimeoutSeconds: s.RequestTimeoutSeconds,
		SecretBackend:         s.SecretBackend,
	}
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
// An empty non-nil GoogleClientSecret removes the stored secret.
type SettingsUpdate struct {
	GoogleClientID        *string
	GoogleClientSecret    *string
	TesseractPath         *string
	OCRTimeoutSeconds     *int
	MaxConcurrentRequests *int
	SpreadsheetBatchSize  *int
	MaxRetries            *int
	RetryDelaySeconds     *float64
	JobRetentionHours     *int
	RequestTimeoutSeconds *int
	SecretBackend         *SecretBackend
}

// Apply returns s with the update's non-nil fields applied and sanitized.
func (u SettingsUpdate) Apply(s Settings) Settings {
	if u.GoogleClientID != nil {
		s.GoogleClientID = *u.GoogleClientID
	}
	if u.GoogleClientSecret != nil {
		s.GoogleClientSecret = *u.GoogleClientSecret
	}
	if u.TesseractPath != nil {
		s.TesseractPath = *u.TesseractPath
	}
	if u.OCRTimeoutSeconds != nil {
		s.OCRTimeoutSeconds = *u.OCRTimeoutSeconds
	}
	if u.MaxConcurrentRequests != nil {
		s.MaxConcurrentRequests = *u.MaxConcurrentRequests
	}
	if u.SpreadsheetBatchSize != nil {
		s.SpreadsheetBatchSize = *u.SpreadsheetBatchSize
	}
	if u.MaxRetries != nil {
		s.MaxRetries = *u.MaxRetries
	}
	if u.RetryDelaySeconds != nil {
		s.RetryDelaySeconds = *u.RetryDelaySeconds
	}
	if u.JobRetentionHours != nil {
		s.JobRetentionHours = *u.JobRetentionHours
	}
	if u.RequestTimeoutSeconds != nil {
		s.RequestTimeoutSeconds = *u.RequestTimeoutSeconds
	}
	if u.SecretBackend != nil {
		s.SecretBackend = *u.SecretBackend
	}
	return s.Sanitize()
}
