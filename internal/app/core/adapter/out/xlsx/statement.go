package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
)

const SheetName = "Statement"

// Headers 對帳單欄位
var Headers = []string{"Date", "Type", "Amount", "Currency", "Account", "Counterparty", "Status", "Description", "Debt"}

// StatementWriter 將交易歷史輸出為 .xlsx
// 金額以字串寫入，避免浮點誤差
type StatementWriter struct{}

var _ usecase.StatementWriter = StatementWriter{}

func NewStatementWriter() StatementWriter {
	return StatementWriter{}
}

func (StatementWriter) WriteStatement(w io.Writer, entries []domain.HistoryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	for i, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return err
		}
	}

	for i := range entries {
		e := &entries[i]
		row := []any{
			e.Date.UTC().Format("2006-01-02 15:04:05"),
			string(e.Type),
			e.Amount.StringFixed(2),
			e.AccountCurrency,
			accountLabel(e),
			counterparty(e),
			e.Status,
			deref(e.Description),
			e.IsDebt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func accountLabel(e *domain.HistoryEntry) string {
	if e.BankName == "" {
		return e.AccountName
	}
	return fmt.Sprintf("%s (%s)", e.AccountName, e.BankName)
}

func counterparty(e *domain.HistoryEntry) string {
	name := deref(e.RelatedAccountName)
	if bank := deref(e.RelatedBankName); bank != "" && name != "" {
		return fmt.Sprintf("%s (%s)", name, bank)
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
