package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 bank_accounts 表
type sqlAccount struct {
	ID             int64               `gorm:"primaryKey;autoIncrement"`
	UserID         int64               `gorm:"index;not null"`
	AccountNumber  string              `gorm:"size:20;uniqueIndex;not null"`
	AccountName    string              `gorm:"size:100;not null"`
	BankIdentifier string              `gorm:"size:50"`
	BankName       string              `gorm:"size:100"`
	Type           string              `gorm:"size:20;not null"`
	Currency       string              `gorm:"size:3;not null"`
	Balance        decimal.Decimal     `gorm:"type:decimal(20,2);not null"`
	Debt           decimal.Decimal     `gorm:"type:decimal(20,2);not null"`
	Plan           *string             `gorm:"size:50"`
	InterestRate   decimal.NullDecimal `gorm:"type:decimal(9,4)"`
	IsSalary       bool                `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (*sqlAccount) TableName() string {
	return "bank_accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	acc := &domain.Account{
		ID:             a.ID,
		UserID:         a.UserID,
		AccountNumber:  a.AccountNumber,
		AccountName:    a.AccountName,
		BankIdentifier: a.BankIdentifier,
		BankName:       a.BankName,
		Type:           domain.AccountType(a.Type),
		Currency:       a.Currency,
		Balance:        a.Balance,
		Debt:           a.Debt,
		Plan:           a.Plan,
		IsSalary:       a.IsSalary,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.InterestRate.Valid {
		rate := a.InterestRate.Decimal
		acc.InterestRate = &rate
	}
	return acc
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement"`
	AccountID            int64           `gorm:"index;not null"`
	RelatedAccountID     *int64          `gorm:"index"`
	RelatedTransactionID *int64          `gorm:"index"`
	RefID                *string         `gorm:"column:ref_id;size:36;uniqueIndex"` // 外部追蹤號 (UUID)，用於冪等
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Type                 string          `gorm:"size:20;index;not null"`
	Status               string          `gorm:"size:30;not null"`
	Description          *string         `gorm:"size:255"`
	IsDebt               bool            `gorm:"not null"`
	DebtApplied          decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Date                 time.Time       `gorm:"index;not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() *domain.Transaction {
	tran := &domain.Transaction{
		ID:                   t.ID,
		AccountID:            t.AccountID,
		RelatedAccountID:     t.RelatedAccountID,
		RelatedTransactionID: t.RelatedTransactionID,
		Amount:               t.Amount,
		Type:                 domain.TransactionType(t.Type),
		Status:               t.Status,
		Description:          t.Description,
		IsDebt:               t.IsDebt,
		DebtApplied:          t.DebtApplied,
		Date:                 t.Date.UTC(),
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
	if t.RefID != nil {
		if ref, err := uuid.Parse(*t.RefID); err == nil {
			tran.Reference = &ref
		}
	}
	return tran
}

func refString(ref *uuid.UUID) *string {
	if ref == nil || *ref == uuid.Nil {
		return nil
	}
	s := ref.String()
	return &s
}
