package driven

import (
	"context"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// DocumentParser extracts contact fields from a resume.
// It never fails on malformed input; problems are reported in the result's
// Errors with zeroed fields. The file extension selects the format.
type DocumentParser interface {
	ParseBytes(ctx context.Context, fileName string, data []byte) domain.ExtractionResult
}
