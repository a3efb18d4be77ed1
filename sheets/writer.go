package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"orglogo-scraper/models"
)

// maxCellLength is the Google Sheets limit for a single cell
const maxCellLength = 50000

var header = []interface{}{"Name", "Website", "Logo", "Confidence", "Strategy", "Resolved At", "Preview"}

// Writer handles writing organizations to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewWriter creates a new Google Sheets writer. Credentials come from
// credentialsPath or, when empty, from GOOGLE_SHEETS_CREDENTIALS.
func NewWriter(ctx context.Context, spreadsheetID, sheetName, credentialsPath string) (*Writer, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is empty")
	}

	var credsJSON []byte
	var err error

	if credentialsPath != "" {
		credsJSON, err = os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
	} else {
		// Trim whitespace and newlines that might be in the environment variable
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		log.Debug().Int("bytes", len(credsEnv)).Msg("reading credentials from GOOGLE_SHEETS_CREDENTIALS")
		credsJSON = []byte(credsEnv)
	}

	if err := validateCredentials(credsJSON); err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetName:     sanitizeSheetName(sheetName),
	}, nil
}

// validateCredentials accepts service account JSON only
func validateCredentials(credsJSON []byte) error {
	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}
	return nil
}

// AppendOrganizations appends one row per organization to the configured
// sheet, writing the header first when the sheet is empty
func (w *Writer) AppendOrganizations(ctx context.Context, orgs []models.Organization) error {
	if len(orgs) == 0 {
		log.Debug().Msg("no organizations to append")
		return nil
	}

	resp, err := w.service.Spreadsheets.Values.Get(w.spreadsheetID, quoteSheet(w.sheetName)+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read existing data: %w", err)
	}

	var values [][]interface{}
	if len(resp.Values) == 0 {
		values = append(values, header)
	}
	for _, org := range orgs {
		values = append(values, organizationRow(org))
	}

	_, err = w.service.Spreadsheets.Values.Append(w.spreadsheetID, quoteSheet(w.sheetName)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheets: %w", err)
	}

	log.Info().Int("rows", len(orgs)).Str("sheet", w.sheetName).Msg("appended organizations to Google Sheets")
	return nil
}

// CreateSheetAndWriteOrganizations creates a new sheet at the beginning of
// the spreadsheet and writes orgs to it. Returns the sheet name and gid.
func (w *Writer) CreateSheetAndWriteOrganizations(ctx context.Context, sheetName string, orgs []models.Organization) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)

	batchUpdateResp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: 0,
					},
				},
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(batchUpdateResp.Replies) > 0 && batchUpdateResp.Replies[0].AddSheet != nil {
		sheetID = batchUpdateResp.Replies[0].AddSheet.Properties.SheetId
	}

	values := [][]interface{}{header}
	for _, org := range orgs {
		values = append(values, organizationRow(org))
	}

	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, quoteSheet(sheetName)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	log.Info().Int("rows", len(orgs)).Str("sheet", sheetName).Int64("gid", sheetID).Msg("wrote organizations to new sheet")
	return sheetName, sheetID, nil
}

// organizationRow renders one organization. Inline SVG logos can exceed the
// cell limit and have no URL to preview, so they are summarized.
func organizationRow(org models.Organization) []interface{} {
	logoCell := org.Logo
	preview := ""
	switch {
	case strings.HasPrefix(org.Logo, "data:"):
		if len(logoCell) > maxCellLength {
			logoCell = fmt.Sprintf("inline image (%d bytes)", len(org.Logo))
		}
	case org.Logo != "":
		preview = fmt.Sprintf(`=IMAGE("%s")`, strings.ReplaceAll(org.Logo, `"`, `%22`))
	}

	resolvedAt := ""
	if !org.ResolvedAt.IsZero() {
		resolvedAt = org.ResolvedAt.UTC().Format(time.RFC3339)
	}

	var confidence interface{} = ""
	if org.HasLogo() {
		confidence = org.Confidence
	}

	return []interface{}{
		org.Name,
		org.Website,
		logoCell,
		confidence,
		org.Strategy,
		resolvedAt,
		preview,
	}
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ]
	invalidChars := []string{"/", "\\", "?", "*", "[", "]"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is returned unchanged.
func ExtractSpreadsheetID(url string) string {
	url = strings.TrimSpace(url)
	if url != "" && !strings.Contains(url, "/") {
		return url
	}

	// Find the ID between /d/ and /edit or ?
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.IndexAny(idPart, "/?#"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}

// SpreadsheetID returns the spreadsheet the writer targets
func (w *Writer) SpreadsheetID() string {
	return w.spreadsheetID
}

// SheetURL links to a specific sheet of the spreadsheet
func SheetURL(spreadsheetID string, sheetID int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}
