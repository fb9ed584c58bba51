package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// findOwnedTransaction 取得屬於該使用者帳戶的交易
func findOwnedTransaction(tx *gorm.DB, userID, transactionID int64) (*sqlTransaction, error) {
	var row sqlTransaction
	err := tx.Where("id = ? AND account_id IN (?)", transactionID, ownedAccountIDs(tx, userID)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// lockTransaction 以 SELECT ... FOR UPDATE 重新讀取交易
// 已被其他交易刪除時回傳 domain.ErrTransactionNotFound
func lockTransaction(tx *gorm.DB, transactionID int64) (*sqlTransaction, error) {
	var row sqlTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", transactionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// checkRelatedAccess 轉帳另一腳的帳戶也必須屬於該使用者
func checkRelatedAccess(tx *gorm.DB, row *sqlTransaction, userID int64) error {
	if row.RelatedAccountID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&sqlAccount{}).
		Where("id = ? AND user_id = ?", *row.RelatedAccountID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNoAccessToRelatedTransaction
	}
	return nil
}

// transferLegs 鎖定並找出同一筆轉帳的兩腳，必須剛好兩筆且一出一入
// 依 id 順序上鎖，從任一腳進來的請求鎖定順序都相同
func (s *Store) transferLegs(tx *gorm.DB, row *sqlTransaction) (out, in *sqlTransaction, err error) {
	var legs []sqlTransaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? OR related_transaction_id = ?", row.ID, row.ID).
		Order("id").
		Find(&legs).Error; err != nil {
		return nil, nil, err
	}
	if len(legs) == 0 {
		// 讀取後已被其他請求沖銷
		return nil, nil, domain.ErrTransactionNotFound
	}
	if len(legs) == 2 {
		for i := range legs {
			switch domain.TransactionType(legs[i].Type) {
			case domain.TransactionTypeTransferOut:
				out = &legs[i]
			case domain.TransactionTypeTransferIn:
				in = &legs[i]
			}
		}
	}
	if out == nil || in == nil {
		s.logger.Error("transfer pair integrity violation",
			"transaction_id", row.ID,
			"type", row.Type,
			"legs_found", len(legs),
		)
		return nil, nil, domain.ErrInvalidTransferPair
	}
	return out, in, nil
}

// UpdateTransaction 更新交易的描述、狀態、債務標記或日期
//
// 轉帳時只把狀態與日期同步到另一腳，描述與債務標記只改本筆。
func (s *Store) UpdateTransaction(ctx context.Context, userID, transactionID int64, patch domain.TransactionPatch) (*domain.Transaction, error) {
	var updated sqlTransaction
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := findOwnedTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		isTransfer := domain.TransactionType(row.Type).IsTransfer()
		if isTransfer {
			if err := checkRelatedAccess(tx, row, userID); err != nil {
				return err
			}
		}
		if patch.IsEmpty() {
			return domain.ErrNoFieldsToUpdate
		}
		if patch.IsDebt != nil && *patch.IsDebt && domain.TransactionType(row.Type) == domain.TransactionTypeTransferIn {
			return domain.ErrDebtOnIncomingTransfer
		}

		now := s.now().UTC()
		updates := map[string]any{}
		shared := map[string]any{}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.IsDebt != nil {
			updates["is_debt"] = *patch.IsDebt
		}
		if patch.Status != nil {
			updates["status"] = *patch.Status
			shared["status"] = *patch.Status
		}
		if patch.Date != nil {
			updates["date"] = patch.Date.UTC()
			shared["date"] = patch.Date.UTC()
		}
		updates["updated_at"] = now

		if err := tx.Model(&sqlTransaction{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}

		if isTransfer && len(shared) > 0 {
			out, in, err := s.transferLegs(tx, row)
			if err != nil {
				return err
			}
			counterpartID := in.ID
			if row.ID == in.ID {
				counterpartID = out.ID
			}
			shared["updated_at"] = now
			if err := tx.Model(&sqlTransaction{}).Where("id = ?", counterpartID).Updates(shared).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", row.ID).Take(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return updated.toDomain(), nil
}

// DeleteTransaction 沖銷並刪除交易 (非軟刪除)
//
// 一般交易：鎖定交易與帳戶、反向調整餘額與債務後刪除。
// 轉帳：鎖定兩腳，依轉出 -> 轉入順序鎖定帳戶，雙方餘額還原後兩筆一起刪除。
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID int64) (bool, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := findOwnedTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		if !domain.TransactionType(row.Type).IsTransfer() {
			return s.reverseSingle(tx, row)
		}
		if err := checkRelatedAccess(tx, row, userID); err != nil {
			return err
		}
		return s.reverseTransfer(tx, row)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// reverseSingle 沖銷存款或提款
// row 可能是上鎖前讀到的舊資料，一律以鎖定後的內容為準
func (s *Store) reverseSingle(tx *gorm.DB, row *sqlTransaction) error {
	locked, err := lockTransaction(tx, row.ID)
	if err != nil {
		return err
	}
	acc, err := lockAccount(tx, locked.AccountID)
	if err != nil {
		return err
	}
	account := acc.toDomain()
	reverse(account, locked)
	if err := saveBalances(tx, account); err != nil {
		return err
	}
	res := tx.Delete(&sqlTransaction{}, locked.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// reverseTransfer 沖銷轉帳的兩腳
func (s *Store) reverseTransfer(tx *gorm.DB, row *sqlTransaction) error {
	out, in, err := s.transferLegs(tx, row)
	if err != nil {
		return err
	}
	fromAcc, err := lockAccount(tx, out.AccountID)
	if err != nil {
		return err
	}
	toAcc, err := lockAccount(tx, in.AccountID)
	if err != nil {
		return err
	}
	from, to := fromAcc.toDomain(), toAcc.toDomain()
	reverse(from, out)
	reverse(to, in)
	if err := saveBalances(tx, from); err != nil {
		return err
	}
	if err := saveBalances(tx, to); err != nil {
		return err
	}
	res := tx.Where("id IN ?", []int64{out.ID, in.ID}).Delete(&sqlTransaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 2 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// reverse 依交易方向還原帳戶的餘額與債務
func reverse(account *domain.Account, row *sqlTransaction) {
	if domain.TransactionType(row.Type).Credits() {
		account.ReverseDeposit(row.Amount, row.DebtApplied)
		return
	}
	account.ReverseWithdrawal(row.Amount, row.DebtApplied)
}
