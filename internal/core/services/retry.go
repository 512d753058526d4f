package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// minBackoff is the floor applied to every retry delay.
const minBackoff = time.Duration(domain.MinRetryDelaySeconds * float64(time.Second))

// Backoff returns the delay before retry number attempt (0-based):
// base * 2^attempt, never below 100ms.
func Backoff(base time.Duration, attempt int) time.Duration {
	attempt = min(max(attempt, 0), 20)
	return max(base<<attempt, minBackoff)
}

// EnsureFileExtension makes the file name end in the extension its MIME
// type implies, so the parser dispatches on the real format. Unknown MIME
// types leave the name unchanged.
func EnsureFileExtension(name, mimeType string) string {
	var want string
	switch mimeType {
	case domain.MimeTypePDF:
		want = ".pdf"
	case domain.MimeTypeDOCX:
		want = ".docx"
	default:
		return name
	}
	if strings.TrimSpace(name) == "" {
		return "document" + want
	}
	if strings.EqualFold(filepath.Ext(name), want) {
		return name
	}
	return name + want
}

// processFile runs the download/parse procedure for one file with retries.
// It never fails: problems end up in the candidate's Errors.
func (o *JobOrchestrator) processFile(ctx context.Context, accessToken string, file domain.DriveFile, settings domain.Settings) domain.ParsedCandidate {
	if strings.TrimSpace(file.ID) == "" {
		return domain.FailedCandidate(file, "Missing file ID")
	}

	log := o.log.With().Str("file_id", file.ID).Logger()
	var lastErr error
	for attempt := 0; attempt < settings.MaxRetries; attempt++ {
		candidate, err := o.processFileOnce(ctx, accessToken, file, settings)
		if err == nil {
			return candidate
		}
		lastErr = err

		if !domain.IsRetryable(err) || attempt+1 >= settings.MaxRetries {
			break
		}
		delay := Backoff(settings.RetryDelay(), attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("retrying file")
		if err := o.sleep(ctx, delay); err != nil {
			break
		}
	}

	log.Warn().Err(lastErr).Msg("file failed")
	return domain.FailedCandidate(file, fmt.Sprintf("Error processing file: %v", lastErr))
}

func (o *JobOrchestrator) processFileOnce(ctx context.Context, accessToken string, file domain.DriveFile, settings domain.Settings) (domain.ParsedCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, settings.RequestTimeout())
	defer cancel()

	data, err := o.drive.Download(callCtx, accessToken, file.ID)
	if err != nil {
		return domain.ParsedCandidate{}, err
	}

	name := EnsureFileExtension(file.Name, file.MimeType)
	result := o.parser.ParseBytes(ctx, name, data)
	return domain.NewParsedCandidate(file.ID, file.Name, result), nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
