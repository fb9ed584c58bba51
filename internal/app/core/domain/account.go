package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 帳戶類型
type AccountType string

const (
	AccountTypeDeposit    AccountType = "deposit"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeCredit     AccountType = "credit"
)

// Valid 是否為支援的帳戶類型
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeDeposit, AccountTypeSavings, AccountTypeInvestment, AccountTypeCredit:
		return true
	}
	return false
}

// Account 銀行帳戶
//
// Balance 與 Debt 各自獨立變動：Debt 只記錄明確標記為債務的金額，
// 絕不由 Balance 推導。
type Account struct {
	ID             int64
	UserID         int64
	AccountNumber  string
	AccountName    string
	BankIdentifier string
	BankName       string
	Type           AccountType
	Currency       string
	Balance        decimal.Decimal
	Debt           decimal.Decimal
	Plan           *string
	InterestRate   *decimal.Decimal
	IsSalary       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NetBalance 餘額扣除債務
func (a *Account) NetBalance() decimal.Decimal {
	return a.Balance.Sub(a.Debt)
}

// Deposit 存款
//
// 參數:
//
//	amount: 存款金額
//	isDebt: 是否為償還債務
//
// 回傳:
//
//	decimal.Decimal: 實際減少的債務 (用於日後沖銷)
//	error: 金額不合法
func (a *Account) Deposit(amount decimal.Decimal, isDebt bool) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountMustBePositive
	}
	repaid := decimal.Zero
	if isDebt && a.Debt.IsPositive() {
		repaid = decimal.Min(amount, a.Debt)
		a.Debt = a.Debt.Sub(repaid)
	}
	a.Balance = a.Balance.Add(amount)
	return repaid, nil
}

// Withdraw 提款，isDebt 時同時增加債務
//
// 回傳:
//
//	decimal.Decimal: 實際增加的債務
//	error: 金額不合法或餘額不足
func (a *Account) Withdraw(amount decimal.Decimal, isDebt bool) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountMustBePositive
	}
	if a.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	incurred := decimal.Zero
	if isDebt {
		incurred = amount
		a.Debt = a.Debt.Add(incurred)
	}
	return incurred, nil
}

// ReverseDeposit 沖銷一筆存款 (或轉入)：扣回餘額並還原當時減少的債務
func (a *Account) ReverseDeposit(amount, debtApplied decimal.Decimal) {
	a.Balance = a.Balance.Sub(amount)
	a.Debt = a.Debt.Add(debtApplied)
}

// ReverseWithdrawal 沖銷一筆提款 (或轉出)：退回餘額，債務最低回到 0
func (a *Account) ReverseWithdrawal(amount, debtApplied decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.Debt = decimal.Max(decimal.Zero, a.Debt.Sub(debtApplied))
}

// CreateAccountRequest 開戶參數
type CreateAccountRequest struct {
	AccountName    string
	BankIdentifier string
	BankName       string
	Type           AccountType
	Currency       string
	InitialBalance decimal.Decimal
	Plan           *string
	InterestRate   *decimal.Decimal
	IsSalary       bool
}

// Normalize 檢查並整理開戶參數 (幣別轉大寫，空類型視為 deposit)
func (r *CreateAccountRequest) Normalize() error {
	if r.Type == "" {
		r.Type = AccountTypeDeposit
	}
	if !r.Type.Valid() {
		return ErrInvalidAccountType
	}
	currency, err := NormalizeCurrency(r.Currency)
	if err != nil {
		return err
	}
	r.Currency = currency
	if r.InitialBalance.IsNegative() {
		return ErrNegativeInitialBalance
	}
	if r.Type != AccountTypeDeposit && r.InterestRate == nil {
		return ErrInterestRateRequired
	}
	return nil
}

// NormalizeCurrency 幣別必須為三個英文字母
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}

// AccountPatch 帳戶資料的部分更新，nil 代表不修改
// 餘額、債務與幣別只能透過帳務操作變動，不在此列
type AccountPatch struct {
	AccountName    *string
	BankIdentifier *string
	BankName       *string
	Plan           *string
	InterestRate   *decimal.Decimal
	IsSalary       *bool
}

// IsEmpty 沒有任何欄位要更新
func (p AccountPatch) IsEmpty() bool {
	return p.AccountName == nil && p.BankIdentifier == nil && p.BankName == nil &&
		p.Plan == nil && p.InterestRate == nil && p.IsSalary == nil
}
