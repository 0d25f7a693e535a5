package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// NewClient creates a Grid for the first sheet of a spreadsheet. When
// spreadsheetID is empty the spreadsheet is looked up by name through Drive.
func NewClient(ctx context.Context, httpClient *http.Client, name, spreadsheetID string) (*Service, error) {
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %w", err)
	}

	if spreadsheetID == "" {
		spreadsheetID, err = findSpreadsheet(ctx, httpClient, name)
		if err != nil {
			return nil, err
		}
	}

	return NewService(ctx, srv, spreadsheetID)
}

func findSpreadsheet(ctx context.Context, httpClient *http.Client, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("no spreadsheet name or id configured")
	}
	drv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return "", fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	list, err := drv.Files.List().Q(q).Fields("files(id, name)").PageSize(10).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for spreadsheet: %w", err)
	}

	for _, f := range list.Files {
		if f.Name == name {
			return f.Id, nil
		}
	}
	return "", fmt.Errorf("spreadsheet '%s' not found", name)
}
