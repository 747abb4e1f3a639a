// Package export renders ledger data as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/ecotogether/internal/domain/model"
)

// TransactionsSheet is the sheet holding the audit log.
const TransactionsSheet = "Transactions"

var transactionHeader = []string{"ID", "Points", "Reason", "Created at (UTC)"}

// TransactionsFilename returns the download name for a user's export.
func TransactionsFilename(username string, now time.Time) string {
	return fmt.Sprintf("transactions-%s-%s.xlsx", sanitize(username), now.UTC().Format("20060102"))
}

// WriteTransactions writes a workbook with the user's transactions, oldest
// first, followed by a balance row.
func WriteTransactions(w io.Writer, username string, balance int64, txs []model.Transaction) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for c, h := range transactionHeader {
		if err := setCell(f, c+1, 1, h); err != nil {
			return err
		}
	}
	for i, tx := range txs {
		row := i + 2
		values := []any{tx.ID, tx.Points, tx.Reason, tx.CreatedAt.UTC().Format(time.RFC3339)}
		for c, v := range values {
			if err := setCell(f, c+1, row, v); err != nil {
				return err
			}
		}
	}

	summary := len(txs) + 3
	if err := setCell(f, 1, summary, "Balance"); err != nil {
		return err
	}
	if err := setCell(f, 2, summary, balance); err != nil {
		return err
	}
	if err := setCell(f, 3, summary, username); err != nil {
		return err
	}

	applyFormatting(f, len(txs))

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(TransactionsSheet, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

// applyFormatting bolds the header, adds a filter and widens the reason column.
func applyFormatting(f *excelize.File, rows int) {
	last, _ := excelize.CoordinatesToCellName(len(transactionHeader), 1)
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(TransactionsSheet, "A1", last, bold)
		summary, _ := excelize.CoordinatesToCellName(1, rows+3)
		_ = f.SetCellStyle(TransactionsSheet, summary, summary, bold)
	}
	_ = f.AutoFilter(TransactionsSheet, "A1:"+last, nil)
	_ = f.SetColWidth(TransactionsSheet, "A", "B", 12)
	_ = f.SetColWidth(TransactionsSheet, "C", "C", 30)
	_ = f.SetColWidth(TransactionsSheet, "D", "D", 24)
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
