package google

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure DriveClient implements the interface.
var _ driven.DriveClient = (*DriveClient)(nil)

// MaxDownloadSize caps a single resume download.
const MaxDownloadSize = 25 * 1024 * 1024

const listPageSize = 1000

// DriveClient lists and downloads resumes from Google Drive.
type DriveClient struct {
	cfg config
}

// NewDriveClient creates a Drive client.
func NewDriveClient(opts ...Option) *DriveClient {
	return &DriveClient{cfg: newConfig(ServiceDrive, opts)}
}

func (c *DriveClient) service(ctx context.Context, accessToken string) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, c.cfg.clientOptions(accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// ListFiles returns every PDF and DOCX directly inside folderID that is not
// trashed, following all result pages.
func (c *DriveClient) ListFiles(ctx context.Context, accessToken, folderID string) ([]domain.DriveFile, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := svc.Files.List().
		Q(resumeQuery(folderID)).
		Fields("nextPageToken, files(id, name, mimeType)").
		PageSize(listPageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	var files []domain.DriveFile
	err = c.cfg.call(ctx, func() error {
		return call.Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, domain.DriveFile{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
			}
			return c.cfg.limiter.Wait(ctx)
		})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Download returns a file's content.
func (c *DriveClient) Download(ctx context.Context, accessToken, fileID string) ([]byte, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = c.cfg.call(ctx, func() error {
		resp, err := svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("file %s exceeds the %d MB download limit", fileID, MaxDownloadSize>>20)
	}
	return data, nil
}

// resumeQuery builds the Drive search expression for a folder.
func resumeQuery(folderID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(folderID)
	return fmt.Sprintf("'%s' in parents and trashed=false and (mimeType='%s' or mimeType='%s')",
		escaped, domain.MimeTypePDF, domain.MimeTypeDOCX)
}
