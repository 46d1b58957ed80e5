package google

import (
	"context"
	"fmt"
	"os"

	"truckslot/internal/config"
	"truckslot/internal/events"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const timeLayout = "2006-01-02 15:04:05"

var bookingHeader = []interface{}{
	"ID", "Date", "Timeslot", "Company", "VAT", "Contact", "Email",
	"Truck plate", "Reload city", "New truck number", "Created at",
}

// SheetsService appends committed bookings to a spreadsheet tab.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsService authenticates with a service account credentials file.
func NewSheetsService(ctx context.Context, cfg config.GoogleConfig) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewSheetsServiceWith(srv, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewSheetsServiceWith wraps an already configured API client.
func NewSheetsServiceWith(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsService {
	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsService{service: srv, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (s *SheetsService) Name() string { return "google_sheets" }

// TestConnection проверяет доступ к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the header row when the first row is empty.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	headerRange := fmt.Sprintf("%s!A1:K1", s.sheetName)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheets.ValueRange{
		Values: [][]interface{}{bookingHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Deliver добавляет строку с новым бронированием
func (s *SheetsService) Deliver(ctx context.Context, p *events.BookingEventPayload) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(p)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking row: %w", err)
	}
	return nil
}

func bookingRowValues(p *events.BookingEventPayload) []interface{} {
	return []interface{}{
		p.BookingID,
		p.Date,
		p.Timeslot,
		p.Company,
		p.VAT,
		p.ContactName,
		p.ContactEmail,
		p.TruckPlate,
		p.ReloadCity,
		p.NewTruckNumber,
		p.CreatedAt.UTC().Format(timeLayout),
	}
}
