package gormstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// findByReference 依外部追蹤號找出已存在的交易，沒有則回傳 nil
//
// 追蹤號全域唯一，但只有同一帳戶、同一類型的交易才算重送；
// 其他帳戶或其他類型用過的追蹤號回傳 domain.ErrReferenceConflict，不透露對方的交易內容。
func findByReference(tx *gorm.DB, ref *uuid.UUID, accountID int64, typ domain.TransactionType) (*sqlTransaction, error) {
	refID := refString(ref)
	if refID == nil {
		return nil, nil
	}
	var existing sqlTransaction
	err := tx.Where("ref_id = ?", *refID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.AccountID != accountID || existing.Type != string(typ) {
		return nil, domain.ErrReferenceConflict
	}
	return &existing, nil
}

// Deposit 存款
//
// 鎖定帳戶 -> 寫入 deposit 紀錄 -> 增加餘額
// isDebt 且帳戶有債務時，同時減少 min(amount, debt) 的債務
func (s *Store) Deposit(ctx context.Context, req domain.DepositRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created sqlTransaction
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		existing, err := findByReference(tx, req.Reference, req.AccountID, domain.TransactionTypeDeposit)
		if err != nil {
			return err
		}
		if existing != nil {
			created = *existing
			return nil
		}

		acc, err := lockAccount(tx, req.AccountID)
		if err != nil {
			return err
		}
		account := acc.toDomain()
		repaid, err := account.Deposit(req.Amount, req.IsDebt)
		if err != nil {
			return err
		}

		created = sqlTransaction{
			AccountID:   account.ID,
			RefID:       refString(req.Reference),
			Amount:      req.Amount,
			Type:        string(domain.TransactionTypeDeposit),
			Status:      domain.StatusCompleted,
			Description: req.Description,
			IsDebt:      req.IsDebt,
			DebtApplied: repaid,
			Date:        domain.EffectiveDate(req.Date, s.now()),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return saveBalances(tx, account)
	})
	if err != nil {
		return nil, err
	}
	return created.toDomain(), nil
}

// Withdraw 提款
//
// 鎖定帳戶 -> 檢查餘額 (不足則不寫入任何資料) -> 寫入 withdrawal 紀錄 -> 扣餘額
// isDebt 時同時增加等額債務
func (s *Store) Withdraw(ctx context.Context, req domain.WithdrawalRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created sqlTransaction
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		existing, err := findByReference(tx, req.Reference, req.AccountID, domain.TransactionTypeWithdrawal)
		if err != nil {
			return err
		}
		if existing != nil {
			created = *existing
			return nil
		}

		acc, err := lockAccount(tx, req.AccountID)
		if err != nil {
			return err
		}
		account := acc.toDomain()
		incurred, err := account.Withdraw(req.Amount, req.IsDebt)
		if err != nil {
			return err
		}

		created = sqlTransaction{
			AccountID:   account.ID,
			RefID:       refString(req.Reference),
			Amount:      req.Amount,
			Type:        string(domain.TransactionTypeWithdrawal),
			Status:      domain.StatusCompleted,
			Description: req.Description,
			IsDebt:      req.IsDebt,
			DebtApplied: incurred,
			Date:        domain.EffectiveDate(req.Date, s.now()),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return saveBalances(tx, account)
	})
	if err != nil {
		return nil, err
	}
	return created.toDomain(), nil
}

// Transfer 轉帳
//
// 依序鎖定轉出、轉入帳戶 -> 檢查餘額與幣別 -> 寫入 transfer_out -> 寫入指向它的 transfer_in
// -> 回填 transfer_out 的 related_transaction_id -> 更新雙方餘額
// 轉入方的債務永遠不變
func (s *Store) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var result *domain.TransferResult
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		existing, err := findByReference(tx, req.Reference, req.FromAccountID, domain.TransactionTypeTransferOut)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.RelatedAccountID == nil || *existing.RelatedAccountID != req.ToAccountID {
				return domain.ErrReferenceConflict
			}
			result, err = s.loadTransfer(tx, existing)
			return err
		}

		// 取得鎖定帳號，順序固定為轉出 -> 轉入
		locked := make([]*sqlAccount, 0, 2)
		for _, id := range req.LockIDs() {
			acc, err := lockAccount(tx, id)
			if err != nil {
				return err
			}
			locked = append(locked, acc)
		}
		from, to := locked[0].toDomain(), locked[1].toDomain()

		incurred, err := from.Withdraw(req.Amount, req.IsDebt)
		if err != nil {
			return err
		}
		if from.Currency != to.Currency {
			return domain.ErrCurrencyMismatch
		}
		if _, err := to.Deposit(req.Amount, false); err != nil {
			return err
		}

		date := domain.EffectiveDate(req.Date, s.now())
		out := sqlTransaction{
			AccountID:        from.ID,
			RelatedAccountID: &to.ID,
			RefID:            refString(req.Reference),
			Amount:           req.Amount,
			Type:             string(domain.TransactionTypeTransferOut),
			Status:           domain.StatusCompleted,
			Description:      req.Description,
			IsDebt:           req.IsDebt,
			DebtApplied:      incurred,
			Date:             date,
		}
		if err := tx.Create(&out).Error; err != nil {
			return err
		}
		in := sqlTransaction{
			AccountID:            to.ID,
			RelatedAccountID:     &from.ID,
			RelatedTransactionID: &out.ID,
			Amount:               req.Amount,
			Type:                 string(domain.TransactionTypeTransferIn),
			Status:               domain.StatusCompleted,
			Description:          req.Description,
			IsDebt:               false,
			DebtApplied:          decimal.Zero,
			Date:                 date,
		}
		if err := tx.Create(&in).Error; err != nil {
			return err
		}
		// 兩筆都存在後才建立雙向連結
		if err := tx.Model(&sqlTransaction{}).
			Where("id = ?", out.ID).
			Update("related_transaction_id", in.ID).Error; err != nil {
			return err
		}
		out.RelatedTransactionID = &in.ID

		if err := saveBalances(tx, from); err != nil {
			return err
		}
		if err := saveBalances(tx, to); err != nil {
			return err
		}

		result = &domain.TransferResult{
			Out: annotate(out.toDomain(), locked[1]),
			In:  annotate(in.toDomain(), locked[0]),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// annotate 附上對方帳戶名稱與銀行，供顯示使用
func annotate(t *domain.Transaction, counterpart *sqlAccount) *domain.Transaction {
	if counterpart == nil {
		return t
	}
	name, bank := counterpart.AccountName, counterpart.BankName
	t.RelatedAccountName = &name
	t.RelatedBankName = &bank
	return t
}

// loadTransfer 依 transfer_out 載入完整的轉帳結果 (冪等重送時使用)
func (s *Store) loadTransfer(tx *gorm.DB, out *sqlTransaction) (*domain.TransferResult, error) {
	var in sqlTransaction
	var relatedID int64
	if out.RelatedTransactionID != nil {
		relatedID = *out.RelatedTransactionID
		err := tx.Where("id = ? AND type = ?", relatedID, string(domain.TransactionTypeTransferIn)).
			Take(&in).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if in.ID == 0 {
		s.logger.Error("transfer pair integrity violation",
			"transaction_id", out.ID,
			"related_transaction_id", relatedID,
		)
		return nil, domain.ErrInvalidTransferPair
	}
	var accounts []sqlAccount
	if err := tx.Where("id IN ?", []int64{out.AccountID, in.AccountID}).Find(&accounts).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*sqlAccount, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}
	return &domain.TransferResult{
		Out: annotate(out.toDomain(), byID[in.AccountID]),
		In:  annotate(in.toDomain(), byID[out.AccountID]),
	}, nil
}
