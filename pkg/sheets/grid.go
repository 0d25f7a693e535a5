package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// Grid is the cell-level view of the first sheet of a spreadsheet. Rows and
// columns are zero-based; row 0 is the header.
type Grid interface {
	Values(ctx context.Context) ([][]string, error)
	Cell(ctx context.Context, row, col int) (string, error)
	Clear(ctx context.Context, firstRow, lastRow, cols int) error
	Write(ctx context.Context, firstRow int, rows [][]string) error
	SetValidation(ctx context.Context, col, firstRow, lastRow int, allowed []string) error
}

// Service is a Grid backed by the Google Sheets API.
type Service struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetID       int64
	sheetTitle    string
}

// NewService binds srv to the first sheet of the given spreadsheet.
func NewService(ctx context.Context, srv *sheets.Service, spreadsheetID string) (*Service, error) {
	ss, err := srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve spreadsheet %s: %w", spreadsheetID, err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}
	props := ss.Sheets[0].Properties
	return &Service{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetID:       props.SheetId,
		sheetTitle:    props.Title,
	}, nil
}

func (s *Service) a1(rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.sheetTitle, "'", "''"), rng)
}

func (s *Service) Values(ctx context.Context) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.a1("A:ZZ")).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to read values: %w", err)
	}
	return toStrings(resp.Values), nil
}

func (s *Service) Cell(ctx context.Context, row, col int) (string, error) {
	ref := fmt.Sprintf("%s%d", ColumnLetter(col), row+1)
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.a1(ref)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to read cell %s: %w", ref, err)
	}
	values := toStrings(resp.Values)
	if len(values) == 0 || len(values[0]) == 0 {
		return "", nil
	}
	return values[0][0], nil
}

func (s *Service) Clear(ctx context.Context, firstRow, lastRow, cols int) error {
	rng := fmt.Sprintf("A%d:%s%d", firstRow+1, ColumnLetter(cols-1), lastRow+1)
	_, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, s.a1(rng), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear %s: %w", rng, err)
	}
	return nil
}

func (s *Service) Write(ctx context.Context, firstRow int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, v := range row {
			values[i][j] = v
		}
	}
	rng := fmt.Sprintf("A%d", firstRow+1)
	// RAW keeps YYYY-MM-DD as text instead of letting the sheet reformat it by locale.
	_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, s.a1(rng), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to write rows at %s: %w", rng, err)
	}
	return nil
}

func (s *Service) SetValidation(ctx context.Context, col, firstRow, lastRow int, allowed []string) error {
	values := make([]*sheets.ConditionValue, len(allowed))
	for i, v := range allowed {
		values[i] = &sheets.ConditionValue{UserEnteredValue: v}
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			SetDataValidation: &sheets.SetDataValidationRequest{
				Range: &sheets.GridRange{
					SheetId:          s.sheetID,
					StartRowIndex:    int64(firstRow),
					EndRowIndex:      int64(lastRow + 1),
					StartColumnIndex: int64(col),
					EndColumnIndex:   int64(col + 1),
					// Zero indices are meaningful here and would otherwise be dropped.
					ForceSendFields: []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Rule: &sheets.DataValidationRule{
					Condition: &sheets.BooleanCondition{
						Type:   "ONE_OF_LIST",
						Values: values,
					},
					ShowCustomUi: true,
					Strict:       true,
				},
			},
		}},
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to set validation on column %s: %w", ColumnLetter(col), err)
	}
	return nil
}

// ColumnLetter converts a zero-based column index to its A1 letters.
func ColumnLetter(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				out[i][j] = s
			} else {
				out[i][j] = fmt.Sprint(v)
			}
		}
	}
	return out
}
