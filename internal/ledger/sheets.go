package ledger

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Sheet1"

// SheetsLedger appends to and reads from one tab of a Google spreadsheet.
// Cells are written RAW so phones and timestamps stay text.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheetsLedger builds the Sheets client. Pass option.WithCredentialsFile
// or option.WithCredentialsJSON for a service account.
func NewSheetsLedger(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*SheetsLedger, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return &SheetsLedger{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		readRange:     fmt.Sprintf("'%s'!A:F", strings.ReplaceAll(sheetName, "'", "''")),
	}, nil
}

func (l *SheetsLedger) AppendRow(ctx context.Context, row []string) error {
	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}
	_, err := l.svc.Spreadsheets.Values.
		Append(l.spreadsheetID, l.readRange, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}

func (l *SheetsLedger) ReadAllRows(ctx context.Context) ([][]string, error) {
	resp, err := l.svc.Spreadsheets.Values.
		Get(l.spreadsheetID, l.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets read: %w", err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, v := range raw {
			if v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		out = append(out, row)
	}
	return out, nil
}
