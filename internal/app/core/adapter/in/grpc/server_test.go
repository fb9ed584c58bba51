package grpc

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/out/gormstore"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/out/xlsx"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
)

// newTestClient 以 bufconn 啟動完整的服務 (SQLite 儲存)
func newTestClient(t *testing.T) *Client {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "grpc.db")), &gorm.Config{
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
	core := usecase.NewCoreUseCase(store, store,
		usecase.WithStatementWriter(xlsx.NewStatementWriter()),
		usecase.WithLogger(quiet),
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(quiet)))
	RegisterLedgerServiceServer(srv, NewGrpcServer(core, quiet))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func field(s *structpb.Struct, path ...string) *structpb.Value {
	v := structpb.NewStructValue(s)
	for _, p := range path {
		v = v.GetStructValue().GetFields()[p]
	}
	return v
}

func createAccount(t *testing.T, c *Client, userID int64, name, currency, balance string) int64 {
	t.Helper()
	resp, err := c.Call(context.Background(), "CreateAccount", map[string]any{
		"user_id":         userID,
		"account_name":    name,
		"currency":        currency,
		"initial_balance": balance,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return int64(field(resp, "account", "id").GetNumberValue())
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("code=%s want=%s (err=%v)", got, code, err)
	}
}

func TestLedgerServiceFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	a := createAccount(t, c, 1, "Checking", "usd", "100")
	b := createAccount(t, c, 1, "Savings", "USD", "0")

	ref := uuid.New()
	dep, err := c.Deposit(ctx, 1, a, decimal.RequireFromString("25.50"), ref)
	if err != nil {
		t.Fatal(err)
	}
	if got := field(dep, "transaction", "amount").GetStringValue(); got != "25.5" {
		t.Fatalf("amount=%q", got)
	}
	// 相同 reference 重送
	again, err := c.Deposit(ctx, 1, a, decimal.RequireFromString("25.50"), ref)
	if err != nil {
		t.Fatal(err)
	}
	if field(again, "transaction", "id").GetNumberValue() != field(dep, "transaction", "id").GetNumberValue() {
		t.Fatal("replayed deposit created a new transaction")
	}

	tr, err := c.Call(ctx, "Transfer", map[string]any{
		"user_id":         1,
		"from_account_id": a,
		"to_account_id":   b,
		"amount":          "20",
		"is_debt":         true,
		"date":            "2026-03-01",
	})
	if err != nil {
		t.Fatal(err)
	}
	if field(tr, "out", "related_transaction_id").GetNumberValue() != field(tr, "in", "id").GetNumberValue() {
		t.Fatal("transfer legs not linked")
	}

	summary, err := c.BalanceSummary(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := field(summary, "total_balance").GetStringValue(); got != "125.5" {
		t.Fatalf("total_balance=%q", got)
	}
	if got := field(summary, "total_debt").GetStringValue(); got != "20" {
		t.Fatalf("total_debt=%q", got)
	}

	history, err := c.Call(ctx, "GetHistory", map[string]any{"user_id": 1, "limit": 1})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(field(history, "transactions").GetListValue().GetValues()); n != 1 {
		t.Fatalf("history rows=%d", n)
	}
	if !field(history, "pagination", "has_more").GetBoolValue() {
		t.Fatal("has_more should be true")
	}
	if field(history, "pagination", "next_cursor").GetStringValue() == "" {
		t.Fatal("next_cursor missing")
	}

	inID := int64(field(tr, "in", "id").GetNumberValue())
	del, err := c.Call(ctx, "DeleteTransaction", map[string]any{"user_id": 1, "transaction_id": inID})
	if err != nil {
		t.Fatal(err)
	}
	if !field(del, "deleted").GetBoolValue() {
		t.Fatal("deleted should be true")
	}

	list, err := c.Call(ctx, "ListAccounts", map[string]any{"user_id": 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range field(list, "accounts").GetListValue().GetValues() {
		acc := v.GetStructValue().GetFields()
		if acc["id"].GetNumberValue() == float64(a) && acc["balance"].GetStringValue() != "125.5" {
			t.Fatalf("checking balance=%q", acc["balance"].GetStringValue())
		}
	}
}

func TestLedgerServiceErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	usd := createAccount(t, c, 1, "USD", "USD", "10")
	eur := createAccount(t, c, 1, "EUR", "EUR", "10")
	foreign := createAccount(t, c, 2, "Foreign", "USD", "10")

	_, err := c.Call(ctx, "Withdraw", map[string]any{"user_id": 1, "account_id": usd, "amount": "11"})
	wantCode(t, err, codes.FailedPrecondition)

	_, err = c.Call(ctx, "Transfer", map[string]any{"user_id": 1, "from_account_id": usd, "to_account_id": eur, "amount": "1"})
	wantCode(t, err, codes.FailedPrecondition)

	_, err = c.Call(ctx, "Deposit", map[string]any{"user_id": 1, "account_id": foreign, "amount": "1"})
	wantCode(t, err, codes.NotFound)

	_, err = c.Call(ctx, "Deposit", map[string]any{"user_id": 1, "account_id": usd, "amount": "abc"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(ctx, "Deposit", map[string]any{"user_id": 1, "amount": "1"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(ctx, "Deposit", map[string]any{"user_id": 1, "account_id": usd, "amount": "-1"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(ctx, "UpdateTransaction", map[string]any{"user_id": 1, "transaction_id": 42, "status": "x"})
	wantCode(t, err, codes.NotFound)

	_, err = c.Call(ctx, "GetHistory", map[string]any{"user_id": 1, "sort": "-balance"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(ctx, "DeleteAccount", map[string]any{"user_id": 1, "account_id": usd})
	wantCode(t, err, codes.FailedPrecondition)

	ref := uuid.New()
	if _, err := c.Deposit(ctx, 1, usd, decimal.RequireFromString("1"), ref); err != nil {
		t.Fatal(err)
	}
	_, err = c.Call(ctx, "Withdraw", map[string]any{"user_id": 2, "account_id": foreign, "amount": "1", "reference": ref.String()})
	wantCode(t, err, codes.AlreadyExists)
}

func TestExportStatementOverGRPC(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	a := createAccount(t, c, 1, "Checking", "USD", "0")
	for i := 0; i < 3; i++ {
		if _, err := c.Deposit(ctx, 1, a, decimal.NewFromInt(int64(i+1)), uuid.New()); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := c.Call(ctx, "ExportStatement", map[string]any{"user_id": 1})
	if err != nil {
		t.Fatal(err)
	}
	if rows := field(resp, "rows").GetNumberValue(); rows != 3 {
		t.Fatalf("rows=%v want=3", rows)
	}
	content, err := StatementContent(resp)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(xlsx.SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("sheet rows=%d want=4", len(rows))
	}
}
