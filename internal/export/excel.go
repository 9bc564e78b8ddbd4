package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tablebook/internal/calendar"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const scheduleSheet = "Расписание"

// Ledger is the read slice of the storage layer the exporter needs.
type Ledger interface {
	GetDailyReservations(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Reservation, error)
	ListTables(ctx context.Context) ([]models.Table, error)
}

// Exporter renders the reservation schedule as an Excel workbook:
// one row per table, one column per offered date, slot lines in each cell.
type Exporter struct {
	ledger Ledger
	cal    *calendar.Calendar
	logger *zerolog.Logger
}

func NewExporter(ledger Ledger, cal *calendar.Calendar, logger *zerolog.Logger) *Exporter {
	return &Exporter{ledger: ledger, cal: cal, logger: logger}
}

// BuildSchedule renders the workbook into memory and returns it together
// with a suggested filename.
func (e *Exporter) BuildSchedule(ctx context.Context, startDate, endDate time.Time) (*bytes.Buffer, string, error) {
	daily, err := e.ledger.GetDailyReservations(ctx, startDate, endDate)
	if err != nil {
		return nil, "", fmt.Errorf("error getting reservations: %v", err)
	}

	tables, err := e.ledger.ListTables(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("error getting tables: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		return nil, "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	dates := e.cal.RangeDates(startDate, endDate)
	dateCols := e.writeDateHeaders(f, dates)
	e.writeTableHeaders(f, tables)
	e.writeReservationData(f, daily, tables, dateCols)

	_ = f.SetColWidth(scheduleSheet, "A", "A", 25)
	if len(dates) > 0 {
		last, _ := excelize.ColumnNumberToName(len(dates) + 1)
		_ = f.SetColWidth(scheduleSheet, "B", last, 22)
		_ = f.MergeCell(scheduleSheet, "A1", last+"1")
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(scheduleSheet, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("error writing workbook: %v", err)
	}

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))

	return &buf, fileName, nil
}

// SaveSchedule renders the workbook and stores it under dir, creating the
// directory when missing. Returns the full file path.
func (e *Exporter) SaveSchedule(ctx context.Context, dir string, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	buf, fileName, err := e.BuildSchedule(ctx, startDate, endDate)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(dir, fileName)
	if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, dates []time.Time) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	dateCols := make(map[string]int, len(dates))
	for i, d := range dates {
		col := i + 2
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
		dateCols[d.Format("2006-01-02")] = col
	}
	return dateCols
}

func (e *Exporter) writeTableHeaders(f *excelize.File, tables []models.Table) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	for i, table := range tables {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%s (до %d чел)", table.Name, table.Capacity))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
	}
}

func (e *Exporter) writeReservationData(
	f *excelize.File,
	daily map[string][]*models.Reservation,
	tables []models.Table,
	dateCols map[string]int,
) {
	slots := e.cal.Slots()

	for dateKey, col := range dateCols {
		byTable := make(map[int64]map[string]*models.Reservation)
		for _, r := range daily[dateKey] {
			if byTable[r.TableID] == nil {
				byTable[r.TableID] = make(map[string]*models.Reservation)
			}
			byTable[r.TableID][r.Slot] = r
		}

		for i, table := range tables {
			cell, _ := excelize.CoordinatesToCellName(col, i+3)
			taken := byTable[table.ID]

			var value string
			for _, slot := range slots {
				if r, ok := taken[slot]; ok {
					value += fmt.Sprintf("%s %s (%d чел)\n", slot, r.GuestName, r.PartySize)
				} else {
					value += fmt.Sprintf("%s свободно\n", slot)
				}
			}
			value += fmt.Sprintf("\nЗанято: %d/%d", len(taken), len(slots))

			_ = f.SetCellValue(scheduleSheet, cell, value)
			if styleID, err := e.cellStyle(f, len(taken), len(slots)); err == nil {
				_ = f.SetCellStyle(scheduleSheet, cell, cell, styleID)
			}
		}
	}
}

// cellStyle раскрашивает ячейку по занятости слотов.
func (e *Exporter) cellStyle(f *excelize.File, taken, total int) (int, error) {
	var color string
	switch {
	case total > 0 && taken >= total:
		color = "#FFC7CE"
	case taken > 0:
		color = "#FFEB9C"
	default:
		color = "#C6EFCE"
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}
