// ABOUTME: Tabular backend that keeps one contact per spreadsheet row
// ABOUTME: Talks to the sheet through a narrow client so tests can use an in-memory grid
package store

import (
	"context"
	"fmt"

	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
)

// DefaultSheetName is the tab holding contacts; row 1 is the header.
const DefaultSheetName = "Contacts"

// SheetsClient is the subset of a hosted spreadsheet API the backend needs.
// Ranges use A1 notation; rows passed to DeleteRow are 1-indexed.
type SheetsClient interface {
	ReadRange(ctx context.Context, rng string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, rng string, values [][]interface{}) error
	AppendRows(ctx context.Context, rng string, values [][]interface{}) error
	ClearRange(ctx context.Context, rng string) error
	DeleteRow(ctx context.Context, sheet string, row int) error
}

// SheetsBackend stores contacts as rows of record.Width columns.
type SheetsBackend struct {
	client SheetsClient
	sheet  string
}

// NewSheetsBackend uses DefaultSheetName when sheet is empty.
func NewSheetsBackend(client SheetsClient, sheet string) *SheetsBackend {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &SheetsBackend{client: client, sheet: sheet}
}

func (b *SheetsBackend) Name() string { return "sheets" }

func (b *SheetsBackend) lastColumn() string {
	return ColumnName(record.Width)
}

// dataRange is every data row below the header.
func (b *SheetsBackend) dataRange() string {
	return fmt.Sprintf("%s!A2:%s", b.sheet, b.lastColumn())
}

func (b *SheetsBackend) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", b.sheet, row, b.lastColumn(), row)
}

// Load skips rows without an id.
func (b *SheetsBackend) Load(ctx context.Context) ([]models.Contact, error) {
	rows, err := b.client.ReadRange(ctx, b.dataRange())
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	contacts := make([]models.Contact, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || cellText(row[0]) == "" {
			continue
		}
		contacts = append(contacts, record.FromRow(row))
	}
	return contacts, nil
}

func (b *SheetsBackend) Insert(ctx context.Context, c models.Contact) error {
	values := [][]interface{}{record.ToCells(record.ToRow(c))}
	if err := b.client.AppendRows(ctx, b.dataRange(), values); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

func (b *SheetsBackend) Replace(ctx context.Context, c models.Contact) error {
	row, err := b.findRow(ctx, c.ID)
	if err != nil {
		return err
	}
	if row < 0 {
		return fmt.Errorf("%w: %s", ErrRowMissing, c.ID)
	}
	values := [][]interface{}{record.ToCells(record.ToRow(c))}
	if err := b.client.UpdateRange(ctx, b.rowRange(row), values); err != nil {
		return fmt.Errorf("failed to update row %d: %w", row, err)
	}
	return nil
}

func (b *SheetsBackend) Remove(ctx context.Context, id string) error {
	row, err := b.findRow(ctx, id)
	if err != nil {
		return err
	}
	if row < 0 {
		return nil
	}
	if err := b.client.DeleteRow(ctx, b.sheet, row); err != nil {
		return fmt.Errorf("failed to delete row %d: %w", row, err)
	}
	return nil
}

// ReplaceAll clears the data rows and writes contacts from row 2.
func (b *SheetsBackend) ReplaceAll(ctx context.Context, contacts []models.Contact) error {
	if err := b.client.ClearRange(ctx, b.dataRange()); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}
	if len(contacts) == 0 {
		return nil
	}
	values := make([][]interface{}, len(contacts))
	for i, c := range contacts {
		values[i] = record.ToCells(record.ToRow(c))
	}
	rng := fmt.Sprintf("%s!A2:%s%d", b.sheet, b.lastColumn(), len(contacts)+1)
	if err := b.client.UpdateRange(ctx, rng, values); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// findRow returns the 1-indexed sheet row holding id, or -1.
func (b *SheetsBackend) findRow(ctx context.Context, id string) (int, error) {
	col, err := b.client.ReadRange(ctx, fmt.Sprintf("%s!A:A", b.sheet))
	if err != nil {
		return -1, fmt.Errorf("failed to read id column: %w", err)
	}
	// index 0 is the header
	for i := 1; i < len(col); i++ {
		if len(col[i]) > 0 && cellText(col[i][0]) == id {
			return i + 1, nil
		}
	}
	return -1, nil
}

// ColumnName converts a 1-indexed column number to its letters (1 → A, 27 → AA).
func ColumnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

func cellText(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// EnsureHeader writes the column header into row 1.
func (b *SheetsBackend) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:%s1", b.sheet, b.lastColumn())
	if err := b.client.UpdateRange(ctx, rng, [][]interface{}{record.ToCells(record.Header)}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}
