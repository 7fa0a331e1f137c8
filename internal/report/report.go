package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"hotelbooking/internal/models"
)

// Kind selects the report layout.
type Kind string

const (
	CheckIns  Kind = "checkins"
	CheckOuts Kind = "checkouts"
	Deleted   Kind = "deleted"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case CheckIns, CheckOuts, Deleted:
		return k, true
	}
	return "", false
}

func (k Kind) title() string {
	switch k {
	case CheckIns:
		return "Check-ins"
	case CheckOuts:
		return "Check-outs"
	default:
		return "Deleted reservations"
	}
}

var baseColumns = []string{
	"Guest Name", "Room Number", "Check-in Date", "Check-out Date", "Status", "Contact Phone", "Notes",
}

func columns(k Kind) []string {
	if k == Deleted {
		return append(append([]string{}, baseColumns...), "Deleted On", "Deleted By")
	}
	return baseColumns
}

// Exporter renders reservation reports as XLSX workbooks.
type Exporter struct {
	dir    string
	logger *zerolog.Logger
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Write renders the report into w. period is printed in the title row.
func (e *Exporter) Write(w io.Writer, kind Kind, hotelName, period string, reservations []models.Reservation) error {
	f, err := build(kind, hotelName, period, reservations)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// Save writes the report into the export directory and returns its path.
func (e *Exporter) Save(kind Kind, hotelID, hotelName, period string, reservations []models.Reservation) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(kind, hotelName, period, reservations)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := FileName(kind, hotelID, period)
	path := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", path).Int("rows", len(reservations)).Msg("Excel report created")
	return path, nil
}

// FileName is the download name of a report.
func FileName(kind Kind, hotelID, period string) string {
	safe := strings.NewReplacer("/", "-", " ", "_", ":", "-").Replace(period)
	return fmt.Sprintf("%s_%s_%s.xlsx", kind, hotelID, safe)
}

func build(kind Kind, hotelName, period string, reservations []models.Reservation) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := kind.title()
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	cols := columns(kind)
	lastCol, _ := excelize.ColumnNumberToName(len(cols))

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("%s: %s, %s", kind.title(), hotelName, period))
	_ = f.MergeCell(sheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("error writing header: %w", err)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle)

	for i, res := range reservations {
		row := rowOf(kind, res)
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", i+3, err)
		}
		if res.Status == models.StatusCancelled {
			style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "#9C0006"}})
			last, _ := excelize.CoordinatesToCellName(len(cols), i+3)
			_ = f.SetCellStyle(sheet, cell, last, style)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", lastCol, 16)
	return f, nil
}

func rowOf(kind Kind, res models.Reservation) []interface{} {
	row := []interface{}{
		GuestName(res),
		res.RoomNumber,
		res.CheckInDate,
		res.CheckOutDate,
		res.Status,
		res.ContactPhone,
		res.Notes,
	}
	if kind == Deleted {
		deletedOn := ""
		if res.DeletedOn != nil {
			deletedOn = res.DeletedOn.Format("2006-01-02 15:04")
		}
		row = append(row, deletedOn, res.DeletedBy)
	}
	return row
}

// GuestName lists the guests of a reservation, or the contact person when
// no guest was recorded.
func GuestName(res models.Reservation) string {
	names := make([]string, 0, len(res.Guests))
	for _, g := range res.Guests {
		if n := strings.TrimSpace(g.FirstName + " " + g.LastName); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return strings.TrimSpace(res.ContactName + " " + res.ContactLastName)
	}
	return strings.Join(names, ", ")
}
