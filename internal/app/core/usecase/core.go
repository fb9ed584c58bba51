package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// ErrStatementUnavailable 未設定對帳單輸出
var ErrStatementUnavailable = errors.New("statement export is not configured")

// CoreUseCase 是核心業務邏輯層
//
// 負責呼叫端的職責：寫入前確認帳戶屬於使用者、分頁資訊、快取失效與操作日誌。
// 帳務本身的一致性由 Ledger 在單一資料庫交易內保證。
type CoreUseCase struct {
	ledger    Ledger
	accounts  AccountDirectory
	cache     SummaryCache
	journal   Journal
	statement StatementWriter
	logger    *slog.Logger
	now       func() time.Time
}

// Option 設定 CoreUseCase 的選用元件
type Option func(*CoreUseCase)

// WithSummaryCache 啟用餘額摘要快取
func WithSummaryCache(cache SummaryCache) Option {
	return func(c *CoreUseCase) { c.cache = cache }
}

// WithJournal 啟用操作日誌
func WithJournal(journal Journal) Option {
	return func(c *CoreUseCase) { c.journal = journal }
}

// WithStatementWriter 設定對帳單輸出格式
func WithStatementWriter(w StatementWriter) Option {
	return func(c *CoreUseCase) { c.statement = w }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *CoreUseCase) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) { c.now = now }
}

func NewCoreUseCase(ledger Ledger, accounts AccountDirectory, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		ledger:   ledger,
		accounts: accounts,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, userID int64, req domain.DepositRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := c.ensureOwned(ctx, userID, req.AccountID); err != nil {
		return nil, err
	}
	tran, err := c.ledger.Deposit(ctx, req)
	if err != nil {
		return nil, err
	}
	c.afterCommit(ctx, userID, domain.JournalEntry{
		Op:             domain.JournalOpDeposit,
		TransactionIDs: []int64{tran.ID},
		AccountIDs:     []int64{tran.AccountID},
		Amount:         tran.Amount,
	})
	return tran, nil
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, userID int64, req domain.WithdrawalRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := c.ensureOwned(ctx, userID, req.AccountID); err != nil {
		return nil, err
	}
	tran, err := c.ledger.Withdraw(ctx, req)
	if err != nil {
		return nil, err
	}
	c.afterCommit(ctx, userID, domain.JournalEntry{
		Op:             domain.JournalOpWithdrawal,
		TransactionIDs: []int64{tran.ID},
		AccountIDs:     []int64{tran.AccountID},
		Amount:         tran.Amount,
	})
	return tran, nil
}

// Transfer 轉帳，雙方帳戶都必須屬於使用者
func (c *CoreUseCase) Transfer(ctx context.Context, userID int64, req domain.TransferRequest) (*domain.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, id := range []int64{req.FromAccountID, req.ToAccountID} {
		if err := c.ensureOwned(ctx, userID, id); err != nil {
			return nil, err
		}
	}
	res, err := c.ledger.Transfer(ctx, req)
	if err != nil {
		return nil, err
	}
	c.afterCommit(ctx, userID, domain.JournalEntry{
		Op:             domain.JournalOpTransfer,
		TransactionIDs: []int64{res.Out.ID, res.In.ID},
		AccountIDs:     []int64{res.Out.AccountID, res.In.AccountID},
		Amount:         res.Out.Amount,
	})
	return res, nil
}

// UpdateTransaction 更新交易
func (c *CoreUseCase) UpdateTransaction(ctx context.Context, userID, transactionID int64, patch domain.TransactionPatch) (*domain.Transaction, error) {
	tran, err := c.ledger.UpdateTransaction(ctx, userID, transactionID, patch)
	if err != nil {
		return nil, err
	}
	c.afterCommit(ctx, userID, domain.JournalEntry{
		Op:             domain.JournalOpUpdate,
		TransactionIDs: []int64{tran.ID},
		AccountIDs:     []int64{tran.AccountID},
		Amount:         tran.Amount,
	})
	return tran, nil
}

// DeleteTransaction 沖銷並刪除交易
func (c *CoreUseCase) DeleteTransaction(ctx context.Context, userID, transactionID int64) (bool, error) {
	ok, err := c.ledger.DeleteTransaction(ctx, userID, transactionID)
	if err != nil {
		return false, err
	}
	c.afterCommit(ctx, userID, domain.JournalEntry{
		Op:             domain.JournalOpDelete,
		TransactionIDs: []int64{transactionID},
		Amount:         decimal.Zero,
	})
	return ok, nil
}

// GetHistoryPage 查詢一頁交易歷史
//
// 多取一筆判斷是否還有下一頁，NextCursor 為本頁最後一筆的排序欄位值。
func (c *CoreUseCase) GetHistoryPage(ctx context.Context, userID int64, opts domain.HistoryOptions) (*domain.HistoryPage, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	opts.Lookahead = true
	entries, err := c.ledger.GetHistory(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	page := &domain.HistoryPage{
		Limit:         opts.Limit,
		SortField:     opts.SortField,
		SortDirection: opts.SortDirection,
	}
	if len(entries) > opts.Limit {
		page.HasMore = true
		entries = entries[:opts.Limit]
	}
	page.Entries = entries
	if page.HasMore && len(entries) > 0 {
		cursor := opts.SortField.CursorOf(&entries[len(entries)-1])
		page.NextCursor = &cursor
	}
	return page, nil
}

// GetBalanceSummary 餘額摘要，有快取時先查快取
func (c *CoreUseCase) GetBalanceSummary(ctx context.Context, userID int64, query domain.BalanceQuery) (*domain.BalanceSummary, error) {
	if c.cache != nil {
		summary, ok, err := c.cache.Get(ctx, userID, query)
		if err != nil {
			c.logger.Warn("summary cache get failed", "user_id", userID, "error", err)
		} else if ok {
			return summary, nil
		}
	}

	summary, err := c.ledger.GetBalanceSummary(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, userID, query, summary); err != nil {
			c.logger.Warn("summary cache set failed", "user_id", userID, "error", err)
		}
	}
	return summary, nil
}

// ExportStatement 將符合條件的全部交易寫成對帳單
// 每次向資料庫取 MaxHistoryLimit 筆，以 (排序值, id) 接續下一批，直到取不滿一批
func (c *CoreUseCase) ExportStatement(ctx context.Context, userID int64, opts domain.HistoryOptions, w io.Writer) (int, error) {
	if c.statement == nil {
		return 0, ErrStatementUnavailable
	}
	if err := opts.Normalize(); err != nil {
		return 0, err
	}
	opts.Limit = domain.MaxHistoryLimit
	opts.Lookahead = false
	opts.Cursor = ""
	opts.AfterID = 0

	var all []domain.HistoryEntry
	for {
		batch, err := c.ledger.GetHistory(ctx, userID, opts)
		if err != nil {
			return 0, err
		}
		all = append(all, batch...)
		if len(batch) < opts.Limit {
			break
		}
		last := &batch[len(batch)-1]
		opts.Cursor = opts.SortField.CursorOf(last)
		opts.AfterID = last.ID
	}

	if err := c.statement.WriteStatement(w, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

// CreateAccount 開戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, userID int64, req domain.CreateAccountRequest) (*domain.Account, error) {
	acc, err := c.accounts.CreateAccount(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID)
	return acc, nil
}

// GetAccounts 列出使用者的帳戶
func (c *CoreUseCase) GetAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	return c.accounts.GetAccounts(ctx, userID)
}

// GetAccount 取得單一帳戶
func (c *CoreUseCase) GetAccount(ctx context.Context, userID, accountID int64) (*domain.Account, error) {
	return c.accounts.GetAccount(ctx, userID, accountID)
}

// UpdateAccount 更新帳戶基本資料
func (c *CoreUseCase) UpdateAccount(ctx context.Context, userID, accountID int64, patch domain.AccountPatch) (*domain.Account, error) {
	acc, err := c.accounts.UpdateAccount(ctx, userID, accountID, patch)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID)
	return acc, nil
}

// DeleteAccount 刪除帳戶
func (c *CoreUseCase) DeleteAccount(ctx context.Context, userID, accountID int64) (bool, error) {
	ok, err := c.accounts.DeleteAccount(ctx, userID, accountID)
	if err != nil {
		return false, err
	}
	c.invalidate(ctx, userID)
	return ok, nil
}

// ensureOwned 帳戶不存在或不屬於使用者時一律回傳 ErrAccountNotFound
func (c *CoreUseCase) ensureOwned(ctx context.Context, userID, accountID int64) error {
	ok, err := c.accounts.AccountBelongsToUser(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccountNotFound
	}
	return nil
}

// afterCommit 帳務已提交後的收尾：清快取、寫日誌
// 這裡的失敗只記錄，不影響已完成的操作
func (c *CoreUseCase) afterCommit(ctx context.Context, userID int64, entry domain.JournalEntry) {
	c.invalidate(ctx, userID)
	if c.journal == nil {
		return
	}
	entry.UserID = userID
	entry.At = c.now().UTC()
	if err := c.journal.Write(entry); err != nil {
		c.logger.Error("journal write failed",
			"op", entry.Op,
			"user_id", userID,
			"transaction_ids", entry.TransactionIDs,
			"error", err,
		)
	}
}

func (c *CoreUseCase) invalidate(ctx context.Context, userID int64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, userID); err != nil {
		c.logger.Warn("summary cache invalidate failed", "user_id", userID, "error", err)
	}
}
