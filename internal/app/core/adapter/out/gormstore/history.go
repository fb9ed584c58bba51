package gormstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// sortColumns 排序欄位對應的資料庫欄位 (固定清單)
var sortColumns = map[domain.SortField]string{
	domain.SortByDate:   "t.date",
	domain.SortByAmount: "t.amount",
	domain.SortByType:   "t.type",
}

// historyRow 歷史查詢的結果列
type historyRow struct {
	ID                   int64
	AccountID            int64
	RelatedAccountID     *int64
	RelatedTransactionID *int64
	RefID                *string
	Amount               decimal.Decimal
	Type                 string
	Status               string
	Description          *string
	IsDebt               bool
	DebtApplied          decimal.Decimal
	Date                 time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	AccountNumber        string
	AccountName          string
	BankName             string
	AccountCurrency      string
	RelatedAccountName   *string
	RelatedBankName      *string
}

func (r *historyRow) toDomain() domain.HistoryEntry {
	tran := sqlTransaction{
		ID:                   r.ID,
		AccountID:            r.AccountID,
		RelatedAccountID:     r.RelatedAccountID,
		RelatedTransactionID: r.RelatedTransactionID,
		RefID:                r.RefID,
		Amount:               r.Amount,
		Type:                 r.Type,
		Status:               r.Status,
		Description:          r.Description,
		IsDebt:               r.IsDebt,
		DebtApplied:          r.DebtApplied,
		Date:                 r.Date,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	entry := domain.HistoryEntry{
		Transaction:     *tran.toDomain(),
		AccountNumber:   r.AccountNumber,
		AccountName:     r.AccountName,
		BankName:        r.BankName,
		AccountCurrency: r.AccountCurrency,
	}
	entry.RelatedAccountName = r.RelatedAccountName
	entry.RelatedBankName = r.RelatedBankName
	return entry
}

const historySelect = `t.id, t.account_id, t.related_account_id, t.related_transaction_id, t.ref_id,
	t.amount, t.type, t.status, t.description, t.is_debt, t.debt_applied, t.date, t.created_at, t.updated_at,
	ba.account_number, ba.account_name, ba.bank_name, ba.currency AS account_currency,
	ra.account_name AS related_account_name, ra.bank_name AS related_bank_name`

// GetHistory 查詢使用者的交易歷史
//
// transfer_in 不列出，轉帳只以 transfer_out 出現一次並附上對方帳戶資訊。
// 游標以嚴格不等式比較排序欄位 (DESC 用 <，ASC 用 >)；
// 帶 AfterID 時改用 (排序欄位, t.id) 複合比較。
// 不加鎖，只讀已提交的資料。
func (s *Store) GetHistory(ctx context.Context, userID int64, opts domain.HistoryOptions) ([]domain.HistoryEntry, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	column := sortColumns[opts.SortField]
	direction := string(opts.SortDirection)

	q := s.db.WithContext(ctx).
		Table("transactions AS t").
		Select(historySelect).
		Joins("JOIN bank_accounts ba ON t.account_id = ba.id").
		Joins("LEFT JOIN bank_accounts ra ON t.related_account_id = ra.id").
		Where("ba.user_id = ?", userID).
		Where("t.type <> ?", string(domain.TransactionTypeTransferIn))

	if opts.AccountID != nil {
		q = q.Where("t.account_id = ?", *opts.AccountID)
	}
	if opts.TypeFilter != nil {
		q = q.Where("t.type = ?", string(*opts.TypeFilter))
	}
	window := opts.Window()
	if window.From != nil {
		q = q.Where("t.date >= ?", *window.From)
	}
	if window.To != nil {
		q = q.Where("t.date < ?", *window.To)
	}
	if opts.Cursor != "" {
		value, err := opts.SortField.ParseCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		operator := ">"
		if opts.SortDirection == domain.SortDesc {
			operator = "<"
		}
		if opts.AfterID > 0 {
			q = q.Where("("+column+" "+operator+" ? OR ("+column+" = ? AND t.id "+operator+" ?))", value, value, opts.AfterID)
		} else {
			q = q.Where(column+" "+operator+" ?", value)
		}
	}

	var rows []historyRow
	if err := q.Order(column + " " + direction).
		Order("t.id " + direction).
		Limit(opts.FetchLimit()).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toDomain())
	}
	return entries, nil
}
