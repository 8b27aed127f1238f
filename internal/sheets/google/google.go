// Package google reads contracted hours from a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"findash/internal/core"
	ports "findash/internal/sheets"
)

const defaultSheetName = "Contracted Hours"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ContractedHoursReader = (*Client)(nil)

// NewFromEnv creates a client from environment variables.
// Required: CONTRACTED_HOURS_SPREADSHEET_ID
// Optional: CONTRACTED_HOURS_SHEET_NAME (default "Contracted Hours") and
// service account credentials as for newSheetsService.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("CONTRACTED_HOURS_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing CONTRACTED_HOURS_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("CONTRACTED_HOURS_SHEET_NAME"))
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// newSheetsService initializes a read-only Sheets service from service
// account credentials in GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var creds []byte
	switch {
	case inline != "":
		creds = []byte(inline)
	case file != "":
		var err error
		if creds, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		goption.WithHTTPClient(newHTTPClient()),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(creds))
	return svc, nil
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

// ReadContractedHours reads the whole contracted hours sheet.
func (c *Client) ReadContractedHours(ctx context.Context) ([]core.ContractedHours, string, error) {
	if c.svc == nil {
		return nil, "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("'%s'!A:E", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rng, err)
	}
	rows, updated, err := parseContractedHours(resp.Values)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", c.sheetName, err)
	}
	slog.InfoContext(ctx, "Read contracted hours sheet", "rows", len(rows), "updated", updated)
	return rows, updated, nil
}
