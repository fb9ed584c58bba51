package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType string

const (
	// 存款
	TransactionTypeDeposit TransactionType = "deposit"
	// 提款
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	// 轉帳 (付款方)
	TransactionTypeTransferOut TransactionType = "transfer_out"
	// 轉帳 (收款方)
	TransactionTypeTransferIn TransactionType = "transfer_in"
)

// StatusCompleted 預設交易狀態
const StatusCompleted = "completed"

// Valid 是否為支援的交易類型
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransferOut, TransactionTypeTransferIn:
		return true
	}
	return false
}

// IsTransfer 是否為轉帳的其中一腳
func (t TransactionType) IsTransfer() bool {
	return t == TransactionTypeTransferOut || t == TransactionTypeTransferIn
}

// Credits 是否增加帳戶餘額
func (t TransactionType) Credits() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeTransferIn
}

// SignedAmount 依交易類型給出對餘額的影響
func SignedAmount(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t.Credits() {
		return amount
	}
	return amount.Neg()
}

// Transaction 交易紀錄
//
// Amount 一律為正數，方向由 Type 決定。
// DebtApplied 記錄建立時實際變動的債務，沖銷時依此還原。
type Transaction struct {
	ID                   int64
	AccountID            int64
	RelatedAccountID     *int64
	RelatedTransactionID *int64
	Reference            *uuid.UUID
	Amount               decimal.Decimal
	Type                 TransactionType
	Status               string
	Description          *string
	IsDebt               bool
	DebtApplied          decimal.Decimal
	Date                 time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// 顯示用：對方帳戶名稱與銀行 (僅轉帳)
	RelatedAccountName *string
	RelatedBankName    *string
}

// DepositRequest 存款參數
type DepositRequest struct {
	AccountID   int64
	Amount      decimal.Decimal
	Description *string
	IsDebt      bool
	Date        *time.Time
	Reference   *uuid.UUID
}

// Validate 檢查存款參數
func (r DepositRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	return nil
}

// WithdrawalRequest 提款參數
type WithdrawalRequest struct {
	AccountID   int64
	Amount      decimal.Decimal
	Description *string
	IsDebt      bool
	Date        *time.Time
	Reference   *uuid.UUID
}

// Validate 檢查提款參數
func (r WithdrawalRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	return nil
}

// TransferRequest 轉帳參數
type TransferRequest struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Description   *string
	IsDebt        bool
	Date          *time.Time
	Reference     *uuid.UUID
}

// Validate 檢查轉帳參數
func (r TransferRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	if r.FromAccountID == r.ToAccountID {
		return ErrSameAccount
	}
	return nil
}

// LockIDs 回傳需要鎖定的帳號 ID
// 固定先鎖轉出帳戶再鎖轉入帳戶
func (r TransferRequest) LockIDs() []int64 {
	return []int64{r.FromAccountID, r.ToAccountID}
}

// TransferResult 轉帳產生的兩筆紀錄
type TransferResult struct {
	Out *Transaction
	In  *Transaction
}

// TransactionPatch 交易的部分更新，nil 代表不修改
type TransactionPatch struct {
	Description *string
	Status      *string
	IsDebt      *bool
	Date        *time.Time
}

// IsEmpty 沒有任何欄位要更新
func (p TransactionPatch) IsEmpty() bool {
	return p.Description == nil && p.Status == nil && p.IsDebt == nil && p.Date == nil
}

// EffectiveDate 未指定日期時使用當下時間
func EffectiveDate(date *time.Time, now time.Time) time.Time {
	if date == nil || date.IsZero() {
		return now.UTC()
	}
	return date.UTC()
}
