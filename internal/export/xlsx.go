// Package export renders bookings and the class roster as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"fitstudio/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	ClassesSheet  = "Classes"

	timeLayout = "02.01.2006 15:04"
)

var (
	bookingHeaders = []string{"ID", "Class ID", "Class", "Scheduled (IST)", "Instructor", "Client name", "Client email", "Booked at"}
	classHeaders   = []string{"ID", "Name", "Scheduled (IST)", "Instructor", "Total", "Available", "Booked"}
)

// WriteBookings writes an XLSX workbook with one row per booking and one row per class.
func WriteBookings(w io.Writer, classes []models.FitnessClass, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", BookingsSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(ClassesSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}
	fullStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	byID := make(map[int64]models.FitnessClass, len(classes))
	for _, c := range classes {
		byID[c.ID] = c
	}

	if err := writeRow(f, BookingsSheet, 1, toCells(bookingHeaders)); err != nil {
		return err
	}
	for i, b := range bookings {
		c := byID[b.ClassID]
		row := []interface{}{b.ID, b.ClassID, c.Name, formatTime(c), c.Instructor, b.ClientName, b.ClientEmail, ""}
		if !b.CreatedAt.IsZero() {
			row[7] = b.CreatedAt.In(models.IST).Format(timeLayout)
		}
		if err := writeRow(f, BookingsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, ClassesSheet, 1, toCells(classHeaders)); err != nil {
		return err
	}
	for i, c := range classes {
		row := []interface{}{c.ID, c.Name, formatTime(c), c.Instructor, c.TotalSlots, c.AvailableSlots, c.BookedSlots()}
		if err := writeRow(f, ClassesSheet, i+2, row); err != nil {
			return err
		}
		if c.AvailableSlots == 0 {
			first, _ := excelize.CoordinatesToCellName(1, i+2)
			last, _ := excelize.CoordinatesToCellName(len(classHeaders), i+2)
			_ = f.SetCellStyle(ClassesSheet, first, last, fullStyle)
		}
	}

	for _, sheet := range []struct {
		name string
		cols int
	}{{BookingsSheet, len(bookingHeaders)}, {ClassesSheet, len(classHeaders)}} {
		last, _ := excelize.ColumnNumberToName(sheet.cols)
		_ = f.SetCellStyle(sheet.name, "A1", last+"1", headerStyle)
		_ = f.SetColWidth(sheet.name, "A", last, 18)
	}
	_ = f.SetColWidth(BookingsSheet, "G", "G", 30)

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("error writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

func formatTime(c models.FitnessClass) string {
	if c.ScheduledAt.IsZero() {
		return ""
	}
	return c.ScheduledAt.In(models.IST).Format(timeLayout)
}
