package driven

import (
	"context"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// DriveClient lists and downloads files from Google Drive.
// Non-success responses fail with a provider error carrying status and body.
type DriveClient interface {
	// ListFiles returns the resumes (PDF and DOCX) directly inside folderID.
	ListFiles(ctx context.Context, accessToken, folderID string) ([]domain.DriveFile, error)

	// Download returns the raw bytes of a file.
	Download(ctx context.Context, accessToken, fileID string) ([]byte, error)
}

// SheetsClient creates spreadsheets and appends rows to them.
type SheetsClient interface {
	// CreateSpreadsheet creates a spreadsheet and returns its id.
	CreateSpreadsheet(ctx context.Context, accessToken, title string) (string, error)

	// AppendRows writes rows after the last row of the first sheet. An empty
	// sheet receives the rows at A1. skipHeaderRow marks rows as data only;
	// when false and the sheet already has content, rows[0] is treated as a
	// header that is already present and is dropped.
	AppendRows(ctx context.Context, accessToken, spreadsheetID string, rows [][]string, skipHeaderRow bool) error
}
