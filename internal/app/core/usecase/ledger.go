package usecase

import (
	"context"
	"io"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的介面
// 每個寫入操作都在單一資料庫交易內完成，失敗時整筆回滾
type Ledger interface {
	// Deposit 存款
	Deposit(ctx context.Context, req domain.DepositRequest) (*domain.Transaction, error)
	// Withdraw 提款
	Withdraw(ctx context.Context, req domain.WithdrawalRequest) (*domain.Transaction, error)
	// Transfer 轉帳，產生互相連結的兩筆紀錄
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	// UpdateTransaction 更新交易欄位，轉帳時同步另一腳的狀態與日期
	UpdateTransaction(ctx context.Context, userID, transactionID int64, patch domain.TransactionPatch) (*domain.Transaction, error)
	// DeleteTransaction 沖銷並刪除交易
	DeleteTransaction(ctx context.Context, userID, transactionID int64) (bool, error)
	// GetHistory 依條件查詢交易 (不含 transfer_in)
	GetHistory(ctx context.Context, userID int64, opts domain.HistoryOptions) ([]domain.HistoryEntry, error)
	// GetBalanceSummary 餘額摘要
	GetBalanceSummary(ctx context.Context, userID int64, query domain.BalanceQuery) (*domain.BalanceSummary, error)
}

// AccountDirectory 帳戶管理
type AccountDirectory interface {
	CreateAccount(ctx context.Context, userID int64, req domain.CreateAccountRequest) (*domain.Account, error)
	GetAccounts(ctx context.Context, userID int64) ([]domain.Account, error)
	GetAccount(ctx context.Context, userID, accountID int64) (*domain.Account, error)
	UpdateAccount(ctx context.Context, userID, accountID int64, patch domain.AccountPatch) (*domain.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID int64) (bool, error)
	// AccountBelongsToUser 帳戶是否屬於該使用者
	AccountBelongsToUser(ctx context.Context, accountID, userID int64) (bool, error)
}

// SummaryCache 餘額摘要快取
type SummaryCache interface {
	Get(ctx context.Context, userID int64, query domain.BalanceQuery) (*domain.BalanceSummary, bool, error)
	Set(ctx context.Context, userID int64, query domain.BalanceQuery, summary *domain.BalanceSummary) error
	// Invalidate 使該使用者所有快取失效
	Invalidate(ctx context.Context, userID int64) error
}

// Journal 已提交操作的稽核紀錄
type Journal interface {
	Write(v any) error
}

// StatementWriter 將交易歷史輸出為對帳單
type StatementWriter interface {
	WriteStatement(w io.Writer, entries []domain.HistoryEntry) error
}
