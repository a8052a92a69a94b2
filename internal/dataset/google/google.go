// Package google reads extracts from a Google Sheets workbook, one tab per dataset.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
)

// Config identifies the workbook and the service account used to read it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	rules         dataset.CoercionRules
}

var _ dataset.Reader = (*Client)(nil)

// New creates a read-only Sheets client with service account credentials.
func New(ctx context.Context, cfg Config, rules dataset.CoercionRules) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	credentialsJSON, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, rules: rules}, nil
}

// credentials resolves inline JSON first, then the configured file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Datasets lists the tab titles of the workbook.
func (c *Client) Datasets(ctx context.Context) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	names := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil && sh.Properties.Title != "" {
			names = append(names, sh.Properties.Title)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Snapshot reads the whole tab named after the dataset.
func (c *Client) Snapshot(ctx context.Context, name string) (core.Dataset, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, name).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		if isMissingSheet(err) {
			return core.Dataset{}, fmt.Errorf("%w: %s", dataset.ErrDatasetNotFound, name)
		}
		return core.Dataset{}, fmt.Errorf("read sheet %s: %w", name, err)
	}
	return parseValues(name, resp.Values, c.rules)
}

// parseValues converts a values matrix as returned by the Sheets API into a
// dataset. The first row is the header.
func parseValues(name string, values [][]interface{}, rules dataset.CoercionRules) (core.Dataset, error) {
	if len(values) == 0 {
		return core.Dataset{Name: name, Columns: []string{}, Rows: []core.Row{}}, nil
	}
	header := toStrings(values[0])
	records := make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		records = append(records, toStrings(row))
	}
	return dataset.Coerce(name, header, records, rules)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// isMissingSheet reports the API error returned for an unknown tab.
func isMissingSheet(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}
