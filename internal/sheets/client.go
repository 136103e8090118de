package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Credentials identify the Google service account.
type Credentials struct {
	ClientEmail string
	// PrivateKey is the PEM key. Escaped "\n" sequences, as found in .env
	// files, are turned into newlines.
	PrivateKey string
}

// APIClient talks to the Sheets v4 REST API.
type APIClient struct {
	svc *sheetsapi.Service
}

// NewAPIClient authenticates a service account with a JWT grant.
func NewAPIClient(ctx context.Context, creds Credentials) (*APIClient, error) {
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("google service account credentials are not set")
	}
	cfg := &jwt.Config{
		Email:      creds.ClientEmail,
		PrivateKey: []byte(strings.ReplaceAll(creds.PrivateKey, `\n`, "\n")),
		Scopes:     []string{sheetsapi.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &APIClient{svc: svc}, nil
}

// HasSheet reports whether a tab titled title exists.
func (c *APIClient) HasSheet(ctx context.Context, spreadsheetID, title string) (bool, error) {
	_, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Ranges(A1(title)).
		Fields("spreadsheetId").
		Context(ctx).
		Do()
	if err == nil {
		return true, nil
	}
	// An unknown tab makes the range unparseable.
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
		return false, nil
	}
	return false, err
}

// AddSheet creates a tab.
func (c *APIClient) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: title},
			},
		}},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

// AppendRow appends row after the table anchored at rng, parsing values as
// if typed by a user.
func (c *APIClient) AppendRow(ctx context.Context, spreadsheetID, rng string, row []any) error {
	vr := &sheetsapi.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}
