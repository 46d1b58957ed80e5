package export

import (
	"fmt"
	"io"

	"truckslot/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var columns = []struct {
	title string
	width float64
}{
	{"Дата", 12},
	{"Слот", 8},
	{"Компания", 25},
	{"VAT", 15},
	{"Контакт", 22},
	{"Email", 28},
	{"Номер", 12},
	{"Перегруз", 15},
	{"Новый номер", 14},
	{"Создано (UTC)", 20},
	{"ID", 38},
}

// WriteBookings renders bookings as an xlsx workbook: a period title row,
// a header row, then one row per booking in the given order.
func WriteBookings(w io.Writer, from, to string, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastCol, _ := excelize.ColumnNumberToName(len(columns))

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s", from, to))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, name, name, col.width)
		_ = f.SetCellValue(sheetName, name+"2", col.title)
	}
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	for i, b := range bookings {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		row := []interface{}{
			b.Date,
			b.Timeslot,
			b.Company,
			b.VAT,
			b.ContactName,
			b.ContactEmail,
			b.TruckPlate,
			b.ReloadCity,
			b.NewTruckNumber,
			b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			b.ID,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+3, err)
		}
	}

	_ = f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName builds the attachment name for a range export.
func FileName(from, to string) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", from, to)
}
