package google

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure SheetsClient implements the interface.
var _ driven.SheetsClient = (*SheetsClient)(nil)

// ResultSheetName is the title of the first tab of created spreadsheets.
const ResultSheetName = domain.ResultSheetName

const (
	headerProbeRange = "A1:Z1"
	valueInput       = "USER_ENTERED"
	insertRows       = "INSERT_ROWS"
)

// SheetsClient creates result spreadsheets and appends rows to them.
type SheetsClient struct {
	cfg config
}

// NewSheetsClient creates a Sheets client.
func NewSheetsClient(opts ...Option) *SheetsClient {
	return &SheetsClient{cfg: newConfig(ServiceSheets, opts)}
}

func (c *SheetsClient) service(ctx context.Context, accessToken string) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx, c.cfg.clientOptions(accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// CreateSpreadsheet creates a spreadsheet whose first tab is "Resume Data".
func (c *SheetsClient) CreateSpreadsheet(ctx context.Context, accessToken, title string) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	spec := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: ResultSheetName}},
		},
	}

	var id string
	err = c.cfg.call(ctx, func() error {
		created, err := svc.Spreadsheets.Create(spec).Fields("spreadsheetId").Context(ctx).Do()
		if err != nil {
			return err
		}
		id = created.SpreadsheetId
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AppendRows writes rows to the first tab. An empty sheet receives the rows
// at A1 as given. Otherwise they are appended as new rows, and when
// skipHeaderRow is false rows[0] is taken to be a header the sheet already
// has and is dropped.
func (c *SheetsClient) AppendRows(ctx context.Context, accessToken, spreadsheetID string, rows [][]string, skipHeaderRow bool) error {
	if len(rows) == 0 {
		return nil
	}
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	var empty bool
	err = c.cfg.call(ctx, func() error {
		probe, err := svc.Spreadsheets.Values.Get(spreadsheetID, headerProbeRange).Context(ctx).Do()
		if err != nil {
			return err
		}
		empty = len(probe.Values) == 0
		return nil
	})
	if err != nil {
		return err
	}

	if empty {
		vr := &sheets.ValueRange{Values: toValues(rows)}
		return c.cfg.call(ctx, func() error {
			_, err := svc.Spreadsheets.Values.Update(spreadsheetID, "A1", vr).
				ValueInputOption(valueInput).Context(ctx).Do()
			return err
		})
	}

	if !skipHeaderRow {
		rows = rows[1:]
		if len(rows) == 0 {
			return nil
		}
	}
	vr := &sheets.ValueRange{Values: toValues(rows)}
	return c.cfg.call(ctx, func() error {
		_, err := svc.Spreadsheets.Values.Append(spreadsheetID, "A1", vr).
			ValueInputOption(valueInput).
			InsertDataOption(insertRows).
			Context(ctx).Do()
		return err
	})
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
