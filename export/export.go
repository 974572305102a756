// ABOUTME: Contact exports for mailing tools and spreadsheets
// ABOUTME: Writes Mailchimp-ready CSV and full-fidelity xlsx workbooks
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/xuri/excelize/v2"
)

// MailchimpHeader is the column set Mailchimp's bulk import maps by default.
var MailchimpHeader = []string{"Email Address", "Full Name", "Company", "Title", "Tags", "Phone Number"}

// utf8BOM makes Excel open the CSV as UTF-8.
const utf8BOM = "\ufeff"

// WorkbookSheet is the sheet name used by WriteWorkbook and ReadWorkbook.
const WorkbookSheet = "Contacts"

type Summary struct {
	Exported int
	Skipped  int
}

// WriteMailchimp writes one row per contact with an email address. Tags are
// joined with commas into a single field.
func WriteMailchimp(w io.Writer, contacts []models.Contact) (Summary, error) {
	var sum Summary
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return sum, fmt.Errorf("failed to write csv: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(MailchimpHeader); err != nil {
		return sum, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, c := range contacts {
		email := strings.TrimSpace(c.Email)
		if email == "" {
			sum.Skipped++
			continue
		}
		row := []string{
			email,
			strings.TrimSpace(c.Name),
			strings.TrimSpace(c.Company),
			strings.TrimSpace(c.Title),
			strings.Join(c.Tags, ","),
			strings.TrimSpace(c.Phone),
		}
		if err := cw.Write(row); err != nil {
			return sum, fmt.Errorf("failed to write csv row: %w", err)
		}
		sum.Exported++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return sum, fmt.Errorf("failed to flush csv: %w", err)
	}
	return sum, nil
}

// WriteWorkbook writes every contact in the canonical column layout, so the
// workbook can be read back with ReadWorkbook or pasted into the sheet.
func WriteWorkbook(w io.Writer, contacts []models.Contact) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(WorkbookSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, 1, record.Header); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(record.Header))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(WorkbookSheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetPanes(WorkbookSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	for i, c := range contacts {
		if err := writeRow(f, i+2, record.ToRow(c)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(WorkbookSheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// ReadWorkbook reads contacts written by WriteWorkbook. Rows without an id
// are skipped.
func ReadWorkbook(r io.Reader) ([]models.Contact, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(WorkbookSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", WorkbookSheet, err)
	}
	contacts := []models.Contact{}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		contacts = append(contacts, record.FromStrings(row))
	}
	return contacts, nil
}
