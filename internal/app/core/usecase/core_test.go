package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/out/gormstore"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// memoryCache 以 map 實作的摘要快取
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]*domain.BalanceSummary
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*domain.BalanceSummary{}}
}

func cacheKey(userID int64, q domain.BalanceQuery) string {
	return fmt.Sprintf("%d/%v/%v/%v", userID, q.AccountID, q.StartDate, q.EndDate)
}

func (m *memoryCache) Get(_ context.Context, userID int64, q domain.BalanceQuery) (*domain.BalanceSummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[cacheKey(userID, q)]
	return s, ok, nil
}

func (m *memoryCache) Set(_ context.Context, userID int64, q domain.BalanceQuery, s *domain.BalanceSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey(userID, q)] = s
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]*domain.BalanceSummary{}
	m.invalidated++
	return nil
}

// recordingJournal 記下寫入的日誌
type recordingJournal struct {
	entries []domain.JournalEntry
	err     error
}

func (j *recordingJournal) Write(v any) error {
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, v.(domain.JournalEntry))
	return nil
}

// countingStatement 只記錄收到的筆數
type countingStatement struct {
	entries []domain.HistoryEntry
}

func (s *countingStatement) WriteStatement(w io.Writer, entries []domain.HistoryEntry) error {
	s.entries = entries
	_, err := fmt.Fprintf(w, "%d rows", len(entries))
	return err
}

type fixture struct {
	core      *usecase.CoreUseCase
	store     *gormstore.Store
	cache     *memoryCache
	journal   *recordingJournal
	statement *countingStatement
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "core.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := gormstore.NewStore(db, gormstore.WithLogger(quiet))
	if err := store.AutoMigrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		store:     store,
		cache:     newMemoryCache(),
		journal:   &recordingJournal{},
		statement: &countingStatement{},
	}
	f.core = usecase.NewCoreUseCase(store, store,
		usecase.WithSummaryCache(f.cache),
		usecase.WithJournal(f.journal),
		usecase.WithStatementWriter(f.statement),
		usecase.WithLogger(quiet),
		usecase.WithClock(func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }),
	)
	return f
}

func (f *fixture) account(t *testing.T, userID int64, name, balance string) *domain.Account {
	t.Helper()
	acc, err := f.core.CreateAccount(context.Background(), userID, domain.CreateAccountRequest{
		AccountName:    name,
		Currency:       "USD",
		InitialBalance: decimal.RequireFromString(balance),
	})
	if err != nil {
		t.Fatal(err)
	}
	return acc
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOwnershipPreCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.account(t, 1, "Mine", "100")
	theirs := f.account(t, 2, "Theirs", "100")

	if _, err := f.core.Deposit(ctx, 1, domain.DepositRequest{AccountID: theirs.ID, Amount: amount("1")}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("deposit: want ErrAccountNotFound, got %v", err)
	}
	if _, err := f.core.Withdraw(ctx, 1, domain.WithdrawalRequest{AccountID: theirs.ID, Amount: amount("1")}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("withdraw: want ErrAccountNotFound, got %v", err)
	}
	if _, err := f.core.Transfer(ctx, 1, domain.TransferRequest{FromAccountID: mine.ID, ToAccountID: theirs.ID, Amount: amount("1")}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("transfer: want ErrAccountNotFound, got %v", err)
	}
	if _, err := f.core.Transfer(ctx, 1, domain.TransferRequest{FromAccountID: mine.ID, ToAccountID: mine.ID, Amount: amount("1")}); !errors.Is(err, domain.ErrSameAccount) {
		t.Fatalf("transfer: want ErrSameAccount, got %v", err)
	}

	acc, err := f.core.GetAccount(ctx, 2, theirs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Balance.Equal(amount("100")) {
		t.Fatalf("foreign balance changed: %s", acc.Balance)
	}
	if len(f.journal.entries) != 0 {
		t.Fatalf("journal entries=%d want=0", len(f.journal.entries))
	}
}

func TestJournalAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1, "A", "100")
	b := f.account(t, 1, "B", "0")

	if _, err := f.core.Deposit(ctx, 1, domain.DepositRequest{AccountID: a.ID, Amount: amount("5")}); err != nil {
		t.Fatal(err)
	}
	res, err := f.core.Transfer(ctx, 1, domain.TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: amount("7")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.core.DeleteTransaction(ctx, 1, res.In.ID); err != nil {
		t.Fatal(err)
	}
	// 失敗的操作不寫日誌
	if _, err := f.core.Withdraw(ctx, 1, domain.WithdrawalRequest{AccountID: b.ID, Amount: amount("1")}); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	ops := make([]domain.JournalOp, 0, len(f.journal.entries))
	for _, e := range f.journal.entries {
		ops = append(ops, e.Op)
		if e.UserID != 1 || e.At.IsZero() {
			t.Fatalf("entry=%+v", e)
		}
	}
	want := []domain.JournalOp{domain.JournalOpDeposit, domain.JournalOpTransfer, domain.JournalOpDelete}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Fatalf("ops=%v want=%v", ops, want)
	}
	transfer := f.journal.entries[1]
	if len(transfer.TransactionIDs) != 2 || transfer.TransactionIDs[0] != res.Out.ID || !transfer.Amount.Equal(amount("7")) {
		t.Fatalf("transfer entry=%+v", transfer)
	}
}

func TestJournalFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("disk full")
	a := f.account(t, 1, "A", "0")

	tran, err := f.core.Deposit(context.Background(), 1, domain.DepositRequest{AccountID: a.ID, Amount: amount("3")})
	if err != nil || tran == nil {
		t.Fatalf("deposit err=%v", err)
	}
}

func TestHistoryPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1, "A", "0")

	for i := 1; i <= 3; i++ {
		d := time.Date(2026, 4, i, 8, 0, 0, 0, time.UTC)
		if _, err := f.core.Deposit(ctx, 1, domain.DepositRequest{AccountID: a.ID, Amount: amount("1"), Date: &d}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := f.core.GetHistoryPage(ctx, 1, domain.HistoryOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 2 || !page.HasMore || page.NextCursor == nil {
		t.Fatalf("page=%+v", page)
	}
	if page.Limit != 2 || page.SortField != domain.SortByDate || page.SortDirection != domain.SortDesc {
		t.Fatalf("page meta limit=%d field=%s dir=%s", page.Limit, page.SortField, page.SortDirection)
	}
	if want := "2026-04-02T08:00:00Z"; *page.NextCursor != want {
		t.Fatalf("cursor=%s want=%s", *page.NextCursor, want)
	}

	next, err := f.core.GetHistoryPage(ctx, 1, domain.HistoryOptions{Limit: 2, Cursor: *page.NextCursor})
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Entries) != 1 || next.HasMore || next.NextCursor != nil {
		t.Fatalf("next=%+v", next)
	}

	// 剛好 limit 筆時不應回報還有下一頁
	exact, err := f.core.GetHistoryPage(ctx, 1, domain.HistoryOptions{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if exact.HasMore || exact.NextCursor != nil {
		t.Fatalf("exact page hasMore=%v", exact.HasMore)
	}
}

func TestSummaryCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1, "A", "10")

	first, err := f.core.GetBalanceSummary(ctx, 1, domain.BalanceQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if !first.TotalBalance.Equal(amount("10")) {
		t.Fatalf("total=%s", first.TotalBalance)
	}
	if len(f.cache.entries) != 1 {
		t.Fatalf("cache entries=%d want=1", len(f.cache.entries))
	}

	if _, err := f.core.Deposit(ctx, 1, domain.DepositRequest{AccountID: a.ID, Amount: amount("5")}); err != nil {
		t.Fatal(err)
	}
	if len(f.cache.entries) != 0 {
		t.Fatal("deposit should invalidate the cache")
	}
	second, err := f.core.GetBalanceSummary(ctx, 1, domain.BalanceQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.TotalBalance.Equal(amount("15")) {
		t.Fatalf("total=%s want=15", second.TotalBalance)
	}
}

func TestExportStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1, "A", "0")

	const n = 130
	for i := 0; i < n; i++ {
		d := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		if _, err := f.core.Deposit(ctx, 1, domain.DepositRequest{AccountID: a.ID, Amount: amount("1"), Date: &d}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	count, err := f.core.ExportStatement(ctx, 1, domain.HistoryOptions{}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if count != n || len(f.statement.entries) != n {
		t.Fatalf("exported=%d written=%d want=%d", count, len(f.statement.entries), n)
	}
	if buf.String() != "130 rows" {
		t.Fatalf("output=%q", buf.String())
	}

	bare := usecase.NewCoreUseCase(f.store, f.store)
	if _, err := bare.ExportStatement(ctx, 1, domain.HistoryOptions{}, &buf); !errors.Is(err, usecase.ErrStatementUnavailable) {
		t.Fatalf("want ErrStatementUnavailable, got %v", err)
	}
}

// TestExportStatementTiedDates 同一天入帳的資料跨批次時不可遺漏
func TestExportStatementTiedDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1, "A", "0")

	const n = 130
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if _, err := f.core.Deposit(ctx, 1, domain.DepositRequest{AccountID: a.ID, Amount: amount("2.50"), Date: &day}); err != nil {
			t.Fatal(err)
		}
	}

	for _, opts := range []domain.HistoryOptions{
		{},
		{SortField: domain.SortByDate, SortDirection: domain.SortAsc},
	} {
		var buf bytes.Buffer
		count, err := f.core.ExportStatement(ctx, 1, opts, &buf)
		if err != nil {
			t.Fatal(err)
		}
		if count != n {
			t.Fatalf("%s %s: exported=%d want=%d", opts.SortField, opts.SortDirection, count, n)
		}
		seen := make(map[int64]bool, n)
		for _, e := range f.statement.entries {
			if seen[e.ID] {
				t.Fatalf("transaction %d exported twice", e.ID)
			}
			seen[e.ID] = true
		}
	}
}
