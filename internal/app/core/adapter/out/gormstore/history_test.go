package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC)
}

func TestHistoryPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	x := openAccount(t, s, 1, "X", "USD", "0")

	for i, amount := range []string{"1", "2", "3"} {
		d := day(i + 1)
		if _, err := s.Deposit(ctx, domain.DepositRequest{AccountID: x.ID, Amount: dec(amount), Date: &d}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.GetHistory(ctx, 1, domain.HistoryOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || !page[0].Date.Equal(day(3)) || !page[1].Date.Equal(day(2)) {
		t.Fatalf("first page=%v", dates(page))
	}
	if page[0].AccountName != "X" || page[0].AccountCurrency != "USD" || page[0].BankName != "X Bank" {
		t.Fatalf("entry account info=%+v", page[0])
	}

	cursor := domain.SortByDate.CursorOf(&page[1])
	rest, err := s.GetHistory(ctx, 1, domain.HistoryOptions{Limit: 2, Cursor: cursor})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || !rest[0].Date.Equal(day(1)) {
		t.Fatalf("second page=%v", dates(rest))
	}

	more, err := s.GetHistory(ctx, 1, domain.HistoryOptions{Limit: 2, Lookahead: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(more) != 3 {
		t.Fatalf("lookahead rows=%d want=3", len(more))
	}
}

func TestHistoryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	x := openAccount(t, s, 1, "X", "USD", "100")

	for i, amount := range []string{"30", "10", "20"} {
		d := day(i + 1)
		if _, err := s.Deposit(ctx, domain.DepositRequest{AccountID: x.ID, Amount: dec(amount), Date: &d}); err != nil {
			t.Fatal(err)
		}
	}

	asc, err := s.GetHistory(ctx, 1, domain.HistoryOptions{SortField: domain.SortByAmount, SortDirection: domain.SortAsc})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10", "20", "30"}
	for i, e := range asc {
		assertMoney(t, "amount", e.Amount, want[i])
	}

	after, err := s.GetHistory(ctx, 1, domain.HistoryOptions{
		SortField:     domain.SortByAmount,
		SortDirection: domain.SortAsc,
		Cursor:        "10",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 {
		t.Fatalf("rows after cursor=%d want=2", len(after))
	}

	if _, err := s.GetHistory(ctx, 1, domain.HistoryOptions{Cursor: "yesterday"}); !errors.Is(err, domain.ErrInvalidCursor) {
		t.Fatalf("want ErrInvalidCursor, got %v", err)
	}
	if _, err := s.GetHistory(ctx, 1, domain.HistoryOptions{SortField: "balance"}); !errors.Is(err, domain.ErrInvalidSortField) {
		t.Fatalf("want ErrInvalidSortField, got %v", err)
	}
}

// TestHistoryFilters 轉入腳不列出，其餘條件依帳戶、類型、日期過濾
func TestHistoryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := openAccount(t, s, 1, "A", "USD", "100")
	b := openAccount(t, s, 1, "B", "USD", "0")
	foreign := openAccount(t, s, 2, "Foreign", "USD", "100")

	d1, d2 := day(1), day(2)
	if _, err := s.Deposit(ctx, domain.DepositRequest{AccountID: a.ID, Amount: dec("5"), Date: &d1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Withdraw(ctx, domain.WithdrawalRequest{AccountID: b.ID, Amount: dec("0"), Date: &d2}); !errors.Is(err, domain.ErrAmountMustBePositive) {
		t.Fatalf("want ErrAmountMustBePositive, got %v", err)
	}
	res, err := s.Transfer(ctx, domain.TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec("10"), Date: &d2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Deposit(ctx, domain.DepositRequest{AccountID: foreign.ID, Amount: dec("1"), Date: &d2}); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetHistory(ctx, 1, domain.HistoryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("rows=%d want=2 (deposit + transfer_out)", len(all))
	}
	out := all[0]
	if out.ID != res.Out.ID || out.RelatedAccountName == nil || *out.RelatedAccountName != "B" {
		t.Fatalf("transfer entry=%+v", out)
	}

	// B 只有轉入腳，因此以帳戶過濾時看不到
	onlyB, err := s.GetHistory(ctx, 1, domain.HistoryOptions{AccountID: &b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyB) != 0 {
		t.Fatalf("account B rows=%d want=0", len(onlyB))
	}

	deposits := domain.TransactionTypeDeposit
	filtered, err := s.GetHistory(ctx, 1, domain.HistoryOptions{TypeFilter: &deposits})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].Type != domain.TransactionTypeDeposit {
		t.Fatalf("type filter=%v", filtered)
	}

	onDay, err := s.GetHistory(ctx, 1, domain.HistoryOptions{Date: timePtr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatal(err)
	}
	if len(onDay) != 1 || !onDay[0].Date.Equal(d1) {
		t.Fatalf("date filter=%v", dates(onDay))
	}

	ranged, err := s.GetHistory(ctx, 1, domain.HistoryOptions{StartDate: &d2, EndDate: &d2})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 1 || ranged[0].Type != domain.TransactionTypeTransferOut {
		t.Fatalf("range filter=%v", dates(ranged))
	}
}

func TestBalanceSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := openAccount(t, s, 1, "A", "USD", "100")
	b := openAccount(t, s, 1, "B", "USD", "10")
	openAccount(t, s, 2, "Foreign", "USD", "999")

	d1, d2 := day(1), day(2)
	if _, err := s.Withdraw(ctx, domain.WithdrawalRequest{AccountID: a.ID, Amount: dec("40"), IsDebt: true, Date: &d1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Transfer(ctx, domain.TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec("15"), Date: &d2}); err != nil {
		t.Fatal(err)
	}

	summary, err := s.GetBalanceSummary(ctx, 1, domain.BalanceQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Accounts) != 2 {
		t.Fatalf("accounts=%d want=2", len(summary.Accounts))
	}
	assertMoney(t, "A balance", summary.Accounts[0].Balance, "45")
	assertMoney(t, "A net", summary.Accounts[0].NetBalance, "5")
	assertMoney(t, "total balance", summary.TotalBalance, "70")
	assertMoney(t, "total debt", summary.TotalDebt, "40")
	assertMoney(t, "net", summary.NetBalance, "30")

	// 區間只含 d2：A 淨變動 -15，B +15，債務仍為目前值
	windowed, err := s.GetBalanceSummary(ctx, 1, domain.BalanceQuery{StartDate: &d2, EndDate: &d2})
	if err != nil {
		t.Fatal(err)
	}
	assertMoney(t, "A movement", windowed.Accounts[0].Balance, "-15")
	assertMoney(t, "B movement", windowed.Accounts[1].Balance, "15")
	assertMoney(t, "A debt", windowed.Accounts[0].Debt, "40")
	assertMoney(t, "window total", windowed.TotalBalance, "0")

	// 區間內沒有交易的帳戶淨變動為 0
	empty := day(20)
	none, err := s.GetBalanceSummary(ctx, 1, domain.BalanceQuery{AccountID: &b.ID, StartDate: &empty})
	if err != nil {
		t.Fatal(err)
	}
	if len(none.Accounts) != 1 || !none.Accounts[0].Balance.IsZero() {
		t.Fatalf("empty window=%+v", none.Accounts)
	}

	missing := int64(999)
	if _, err := s.GetBalanceSummary(ctx, 1, domain.BalanceQuery{AccountID: &missing}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func dates(entries []domain.HistoryEntry) []time.Time {
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Date)
	}
	return out
}
