package gormstore

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// GetBalanceSummary 餘額摘要
//
// 沒有日期區間時回傳帳戶目前的餘額與債務；
// 有日期區間時，帳戶的 balance 改為區間內交易的淨變動 (存入/轉入為正，提款/轉出為負)，
// 債務仍為目前值。
func (s *Store) GetBalanceSummary(ctx context.Context, userID int64, query domain.BalanceQuery) (*domain.BalanceSummary, error) {
	db := s.db.WithContext(ctx)

	var accounts []sqlAccount
	q := db.Where("user_id = ?", userID)
	if query.AccountID != nil {
		q = q.Where("id = ?", *query.AccountID)
	}
	if err := q.Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	if query.AccountID != nil && len(accounts) == 0 {
		return nil, domain.ErrAccountNotFound
	}

	summary := &domain.BalanceSummary{Accounts: make([]domain.AccountBalance, 0, len(accounts))}
	window := query.Window()

	var movements map[int64]decimal.Decimal
	if !window.IsZero() && len(accounts) > 0 {
		ids := make([]int64, 0, len(accounts))
		for i := range accounts {
			ids = append(ids, accounts[i].ID)
		}
		var err error
		if movements, err = s.windowMovements(ctx, ids, window); err != nil {
			return nil, err
		}
	}

	for i := range accounts {
		acc := &accounts[i]
		balance := acc.Balance
		if movements != nil {
			balance = movements[acc.ID]
		}
		summary.Add(domain.AccountBalance{
			AccountID:   acc.ID,
			AccountName: acc.AccountName,
			BankName:    acc.BankName,
			Currency:    acc.Currency,
			Balance:     balance,
			Debt:        acc.Debt,
		})
	}
	return summary, nil
}

// windowMovements 計算每個帳戶在區間內的淨變動
func (s *Store) windowMovements(ctx context.Context, accountIDs []int64, window domain.DateWindow) (map[int64]decimal.Decimal, error) {
	q := s.db.WithContext(ctx).
		Model(&sqlTransaction{}).
		Select(`account_id, SUM(CASE WHEN type IN ? THEN amount ELSE 0 - amount END) AS movement`,
			[]string{string(domain.TransactionTypeDeposit), string(domain.TransactionTypeTransferIn)}).
		Where("account_id IN ?", accountIDs)
	if window.From != nil {
		q = q.Where("date >= ?", *window.From)
	}
	if window.To != nil {
		q = q.Where("date < ?", *window.To)
	}

	var rows []struct {
		AccountID int64
		Movement  decimal.NullDecimal
	}
	if err := q.Group("account_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	movements := make(map[int64]decimal.Decimal, len(accountIDs))
	for _, id := range accountIDs {
		movements[id] = decimal.Zero
	}
	for _, r := range rows {
		if r.Movement.Valid {
			movements[r.AccountID] = r.Movement.Decimal
		}
	}
	return movements, nil
}
