package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"tablebook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const ledgerSheetName = "Reservations"
const scheduleSheetName = "Расписание"

var errRowNotFound = errors.New("reservation row not found")

type SheetsService struct {
	service         *sheets.Service
	ledgerSheetID   string
	scheduleSheetID string
	slots           []string
	rowCache        map[int64]int
	cacheMu         sync.RWMutex
}

func NewSimpleSheetsService(credentialsFile, ledgerSheetID, scheduleSheetID string, slots []string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:         srv,
		ledgerSheetID:   ledgerSheetID,
		scheduleSheetID: scheduleSheetID,
		slots:           slots,
		rowCache:        make(map[int64]int),
	}

	// Warm up cache in background
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		service.WarmUpCache(ctx)
	}()

	// Periodic cache refresh every 1 hour
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			service.WarmUpCache(ctx)
			cancel()
		}
	}()

	return service, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.ledgerSheetID, ledgerSheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.ledgerSheetID, ledgerSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendReservation добавляет бронирование в журнал
func (s *SheetsService) AppendReservation(ctx context.Context, r *models.Reservation) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(r)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.ledgerSheetID, ledgerSheetName+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()

	return err
}

// UpsertReservation updates an existing reservation row or appends a new
// one if not found.
func (s *SheetsService) UpsertReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}

	rowIdx, err := s.FindReservationRow(ctx, r.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.AppendReservation(ctx, r)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:H%d", ledgerSheetName, rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(r)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.ledgerSheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// FindReservationRow locates the 1-based row index for a reservation ID in
// column A, using the cache first.
func (s *SheetsService) FindReservationRow(ctx context.Context, reservationID int64) (int, error) {
	if reservationID == 0 {
		return 0, fmt.Errorf("reservation id is required")
	}

	if row, ok := s.getCachedRow(reservationID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.ledgerSheetID, ledgerSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case float64:
			if int64(v) == reservationID {
				rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
				s.setCachedRow(reservationID, rowIdx)
				return rowIdx, nil
			}
		case string:
			if v == fmt.Sprintf("%d", reservationID) {
				rowIdx := i + 1
				s.setCachedRow(reservationID, rowIdx)
				return rowIdx, nil
			}
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func reservationRowValues(r *models.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.TableID,
		r.TableName,
		r.DateKey(),
		r.Slot,
		r.PartySize,
		r.GuestName,
		r.GuestContact,
	}
}

// UpdateScheduleSheet перерисовывает лист расписания: строки - столы,
// колонки - даты, в ячейке брони по слотам.
func (s *SheetsService) UpdateScheduleSheet(ctx context.Context, startDate, endDate time.Time, dailyReservations map[string][]*models.Reservation, tables []models.Table) error {
	sheetId, err := s.GetSheetIdByName(ctx, s.scheduleSheetID, scheduleSheetName)
	if err != nil {
		return fmt.Errorf("unable to get sheet ID: %v", err)
	}

	clearRange := scheduleSheetName + "!A:Z"
	_, err = s.service.Spreadsheets.Values.Clear(s.scheduleSheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear sheet: %v", err)
	}

	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days <= 0 {
		return fmt.Errorf("invalid date range: startDate %s, endDate %s", startDate, endDate)
	}

	var data [][]interface{}
	var formatRequests []*sheets.Request

	// Заголовок периода
	data = append(data, []interface{}{
		fmt.Sprintf("Период: %s - %s",
			startDate.Format("02.01.2006"),
			endDate.Format("02.01.2006")),
	})

	formatRequests = append(formatRequests, &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetId,
				StartRowIndex:    0,
				EndRowIndex:      1,
				StartColumnIndex: 0,
				EndColumnIndex:   1,
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					HorizontalAlignment: "CENTER",
					TextFormat: &sheets.TextFormat{
						Bold:     true,
						FontSize: 14,
					},
				},
			},
			Fields: "userEnteredFormat(textFormat,horizontalAlignment)",
		},
	})

	data = append(data, []interface{}{})

	// Заголовки дат: только дни, на которые есть брони или уикенды
	headerRow := []interface{}{""}
	var dateKeys []string
	currentDate := startDate
	for !currentDate.After(endDate) && len(dateKeys) < 100 {
		if currentDate.Weekday() == time.Saturday || currentDate.Weekday() == time.Sunday {
			headerRow = append(headerRow, currentDate.Format("02.01"))
			dateKeys = append(dateKeys, currentDate.Format("2006-01-02"))
		}
		currentDate = currentDate.AddDate(0, 0, 1)
	}

	if len(dateKeys) == 0 {
		headerRow = append(headerRow, "Нет данных")
	}
	data = append(data, headerRow)

	if len(headerRow) > 1 {
		formatRequests = append(formatRequests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetId,
					StartRowIndex:    2,
					EndRowIndex:      3,
					StartColumnIndex: 1,
					EndColumnIndex:   int64(len(headerRow)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						HorizontalAlignment: "CENTER",
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
						BackgroundColor: &sheets.Color{
							Red:   0.86,
							Green: 0.92,
							Blue:  0.97,
						},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat,horizontalAlignment)",
			},
		})
	}

	slotCount := len(s.slots)
	if slotCount == 0 {
		slotCount = 2
	}

	// Строки по столам
	for rowIndex, table := range tables {
		rowData := []interface{}{fmt.Sprintf("%s (до %d чел)", table.Name, table.Capacity)}

		for colIndex, dateKey := range dateKeys {
			var tableReservations []*models.Reservation
			for _, r := range dailyReservations[dateKey] {
				if r.TableID == table.ID {
					tableReservations = append(tableReservations, r)
				}
			}

			cellValue := ""
			var backgroundColor *sheets.Color

			if len(tableReservations) > 0 {
				for _, r := range tableReservations {
					cellValue += fmt.Sprintf("[№%d] %s %s (%d чел)\n", r.ID, r.Slot, r.GuestName, r.PartySize)
				}
				cellValue += fmt.Sprintf("\nЗанято слотов: %d/%d", len(tableReservations), slotCount)

				if len(tableReservations) >= slotCount {
					// Все слоты заняты - красный
					backgroundColor = &sheets.Color{Red: 1.0, Green: 0.78, Blue: 0.81}
				} else {
					// Частично занято - жёлтый
					backgroundColor = &sheets.Color{Red: 1.0, Green: 0.92, Blue: 0.61}
				}
			} else {
				cellValue = fmt.Sprintf("Свободно\n\nСлотов: %d", slotCount)
				backgroundColor = &sheets.Color{Red: 0.78, Green: 0.94, Blue: 0.81}
			}

			rowData = append(rowData, cellValue)

			formatRequests = append(formatRequests, &sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          sheetId,
						StartRowIndex:    int64(rowIndex + 3),
						EndRowIndex:      int64(rowIndex + 4),
						StartColumnIndex: int64(colIndex + 1),
						EndColumnIndex:   int64(colIndex + 2),
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							VerticalAlignment: "TOP",
							WrapStrategy:      "WRAP",
							BackgroundColor:   backgroundColor,
						},
					},
					Fields: "userEnteredFormat(backgroundColor,verticalAlignment,wrapStrategy)",
				},
			})
		}
		data = append(data, rowData)
	}

	if len(tables) == 0 {
		rowData := []interface{}{"Нет столов"}
		for range dateKeys {
			rowData = append(rowData, "")
		}
		data = append(data, rowData)
	}

	// Форматирование колонки с названиями столов
	if len(tables) > 0 {
		formatRequests = append(formatRequests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetId,
					StartRowIndex:    3,
					EndRowIndex:      int64(3 + len(tables)),
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
						BackgroundColor: &sheets.Color{
							Red:   0.89,
							Green: 0.94,
							Blue:  0.85,
						},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		})
	}

	valueRange := &sheets.ValueRange{Values: data}
	_, err = s.service.Spreadsheets.Values.Update(s.scheduleSheetID, scheduleSheetName+"!A1", valueRange).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return fmt.Errorf("unable to update schedule sheet: %v", err)
	}

	if len(formatRequests) > 0 {
		batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: formatRequests,
		}

		_, err = s.service.Spreadsheets.BatchUpdate(s.scheduleSheetID, batchUpdateRequest).Do()
		if err != nil {
			return fmt.Errorf("unable to apply formatting: %v", err)
		}
	}

	return s.adjustColumnWidths(sheetId, len(dateKeys))
}

// adjustColumnWidths настраивает ширину колонок
func (s *SheetsService) adjustColumnWidths(sheetId int64, dateCols int) error {
	if dateCols <= 0 {
		dateCols = 1
	}

	var requests []*sheets.Request

	// Колонка с названиями столов
	requests = append(requests, &sheets.Request{
		UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetId,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   1,
			},
			Properties: &sheets.DimensionProperties{
				PixelSize: 200,
			},
			Fields: "pixelSize",
		},
	})

	for i := 1; i <= dateCols && i < 100; i++ {
		requests = append(requests, &sheets.Request{
			UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetId,
					Dimension:  "COLUMNS",
					StartIndex: int64(i),
					EndIndex:   int64(i + 1),
				},
				Properties: &sheets.DimensionProperties{
					PixelSize: 150,
				},
				Fields: "pixelSize",
			},
		})
	}

	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}

	_, err := s.service.Spreadsheets.BatchUpdate(s.scheduleSheetID, batchUpdateRequest).Do()
	if err != nil {
		return fmt.Errorf("unable to adjust column widths: %v", err)
	}

	return nil
}

// GetSheetIdByName возвращает ID листа по его названию
func (s *SheetsService) GetSheetIdByName(ctx context.Context, spreadID, sheetName string) (int64, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(spreadID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to get spreadsheet: %v", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}

	return 0, fmt.Errorf("sheet '%s' not found", sheetName)
}
