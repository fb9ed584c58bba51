package gormstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

var accountNumberSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)

// newAccountNumber 由隨機 UUID 產生 20 位數帳號
func newAccountNumber() string {
	u := uuid.New()
	n := new(big.Int).SetBytes(u[:])
	n.Mod(n, accountNumberSpace)
	return fmt.Sprintf("%020s", n.String())
}

// lockAccount 以 SELECT ... FOR UPDATE 鎖定帳戶
func lockAccount(tx *gorm.DB, accountID int64) (*sqlAccount, error) {
	var acc sqlAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// saveBalances 寫回帳戶的餘額與債務
func saveBalances(tx *gorm.DB, acc *domain.Account) error {
	return tx.Model(&sqlAccount{}).
		Where("id = ?", acc.ID).
		Updates(map[string]any{
			"balance": acc.Balance,
			"debt":    acc.Debt,
		}).Error
}

// ownedAccountIDs 子查詢：使用者擁有的帳戶 ID
func ownedAccountIDs(tx *gorm.DB, userID int64) *gorm.DB {
	return tx.Model(&sqlAccount{}).Select("id").Where("user_id = ?", userID)
}

// CreateAccount 開戶
func (s *Store) CreateAccount(ctx context.Context, userID int64, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	acc := sqlAccount{
		UserID:         userID,
		AccountNumber:  newAccountNumber(),
		AccountName:    req.AccountName,
		BankIdentifier: req.BankIdentifier,
		BankName:       req.BankName,
		Type:           string(req.Type),
		Currency:       req.Currency,
		Balance:        req.InitialBalance,
		Debt:           decimal.Zero,
		Plan:           req.Plan,
		IsSalary:       req.IsSalary,
	}
	if req.InterestRate != nil {
		acc.InterestRate = decimal.NewNullDecimal(*req.InterestRate)
	}
	if err := s.db.WithContext(ctx).Create(&acc).Error; err != nil {
		return nil, classifyStoreError(err)
	}
	return acc.toDomain(), nil
}

// GetAccounts 列出使用者所有帳戶 (新的在前)
func (s *Store) GetAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	var rows []sqlAccount
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toDomain())
	}
	return accounts, nil
}

// GetAccount 取得單一帳戶
func (s *Store) GetAccount(ctx context.Context, userID, accountID int64) (*domain.Account, error) {
	var acc sqlAccount
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, userID).
		Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acc.toDomain(), nil
}

// UpdateAccount 更新帳戶基本資料
// 欄位名稱來自固定清單，不接受呼叫端傳入的欄位名
func (s *Store) UpdateAccount(ctx context.Context, userID, accountID int64, patch domain.AccountPatch) (*domain.Account, error) {
	var updated sqlAccount
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", accountID, userID).Take(&updated).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return err
		}
		if patch.IsEmpty() {
			return domain.ErrNoFieldsToUpdate
		}

		updates := map[string]any{}
		if patch.AccountName != nil {
			updates["account_name"] = *patch.AccountName
		}
		if patch.BankIdentifier != nil {
			updates["bank_identifier"] = *patch.BankIdentifier
		}
		if patch.BankName != nil {
			updates["bank_name"] = *patch.BankName
		}
		if patch.Plan != nil {
			updates["plan"] = *patch.Plan
		}
		if patch.InterestRate != nil {
			updates["interest_rate"] = decimal.NewNullDecimal(*patch.InterestRate)
		}
		if patch.IsSalary != nil {
			updates["is_salary"] = *patch.IsSalary
		}
		updates["updated_at"] = s.now().UTC()

		if err := tx.Model(&sqlAccount{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", accountID).Take(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return updated.toDomain(), nil
}

// DeleteAccount 刪除帳戶
//
// 餘額必須為零。帳戶自己的存提款紀錄一併刪除；
// 仍有轉帳紀錄 (作為轉出或轉入方) 時拒絕，避免對方帳戶留下無法配對的另一腳。
func (s *Store) DeleteAccount(ctx context.Context, userID, accountID int64) (bool, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var acc sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", accountID, userID).
			Take(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		if !acc.Balance.IsZero() {
			return domain.ErrAccountBalanceNotZero
		}

		var transfers int64
		if err := tx.Model(&sqlTransaction{}).
			Where("account_id = ? OR related_account_id = ?", accountID, accountID).
			Where("type IN ?", []string{
				string(domain.TransactionTypeTransferOut),
				string(domain.TransactionTypeTransferIn),
			}).
			Count(&transfers).Error; err != nil {
			return err
		}
		if transfers > 0 {
			return domain.ErrAccountHasTransfers
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&sqlTransaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sqlAccount{}, accountID).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// AccountBelongsToUser 帳戶是否屬於該使用者
func (s *Store) AccountBelongsToUser(ctx context.Context, accountID, userID int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&sqlAccount{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
