package grpc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
)

type GrpcServer struct {
	core   *usecase.CoreUseCase
	logger *slog.Logger
}

var _ LedgerServiceServer = (*GrpcServer)(nil)

func NewGrpcServer(core *usecase.CoreUseCase, logger *slog.Logger) *GrpcServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcServer{
		core:   core,
		logger: logger,
	}
}

func (s *GrpcServer) Deposit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	req := domain.DepositRequest{
		AccountID:   a.requireInt64("account_id"),
		Amount:      a.requireDecimal("amount"),
		Description: a.optString("description"),
		IsDebt:      a.boolean("is_debt"),
		Date:        a.optTime("date"),
		Reference:   a.optUUID("reference"),
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	tran, err := s.core.Deposit(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{"transaction": transactionValue(tran)})
}

func (s *GrpcServer) Withdraw(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	req := domain.WithdrawalRequest{
		AccountID:   a.requireInt64("account_id"),
		Amount:      a.requireDecimal("amount"),
		Description: a.optString("description"),
		IsDebt:      a.boolean("is_debt"),
		Date:        a.optTime("date"),
		Reference:   a.optUUID("reference"),
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	tran, err := s.core.Withdraw(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{"transaction": transactionValue(tran)})
}

func (s *GrpcServer) Transfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	req := domain.TransferRequest{
		FromAccountID: a.requireInt64("from_account_id"),
		ToAccountID:   a.requireInt64("to_account_id"),
		Amount:        a.requireDecimal("amount"),
		Description:   a.optString("description"),
		IsDebt:        a.boolean("is_debt"),
		Date:          a.optTime("date"),
		Reference:     a.optUUID("reference"),
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	res, err := s.core.Transfer(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{
		"out": transactionValue(res.Out),
		"in":  transactionValue(res.In),
	})
}

func (s *GrpcServer) UpdateTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	transactionID := a.requireInt64("transaction_id")
	patch := domain.TransactionPatch{
		Description: a.optString("description"),
		Status:      a.optString("status"),
		IsDebt:      a.optBool("is_debt"),
		Date:        a.optTime("date"),
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	tran, err := s.core.UpdateTransaction(ctx, userID, transactionID, patch)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{"transaction": transactionValue(tran)})
}

func (s *GrpcServer) DeleteTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	transactionID := a.requireInt64("transaction_id")
	if err := a.Err(); err != nil {
		return nil, err
	}

	ok, err := s.core.DeleteTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{"deleted": ok})
}

func (s *GrpcServer) GetHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	opts := a.historyOptions()
	if err := a.Err(); err != nil {
		return nil, err
	}

	page, err := s.core.GetHistoryPage(ctx, userID, opts)
	if err != nil {
		return nil, s.toStatus(err)
	}
	entries := make([]any, 0, len(page.Entries))
	for i := range page.Entries {
		entries = append(entries, historyEntryValue(&page.Entries[i]))
	}
	return reply(map[string]any{
		"transactions": entries,
		"pagination": map[string]any{
			"next_cursor":    optionalString(page.NextCursor),
			"has_more":       page.HasMore,
			"limit":          page.Limit,
			"sort_field":     string(page.SortField),
			"sort_direction": string(page.SortDirection),
		},
	})
}

func (s *GrpcServer) GetBalanceSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	query := domain.BalanceQuery{
		AccountID: a.optInt64("account_id"),
		StartDate: a.optTime("start_date"),
		EndDate:   a.optTime("end_date"),
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	summary, err := s.core.GetBalanceSummary(ctx, userID, query)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(summaryValue(summary))
}

func (s *GrpcServer) CreateAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	req := domain.CreateAccountRequest{
		AccountName:    a.str("account_name"),
		BankIdentifier: a.str("bank_identifier"),
		BankName:       a.str("bank_name"),
		Type:           domain.AccountType(a.str("type")),
		Currency:       a.str("currency"),
		Plan:           a.optString("plan"),
		InterestRate:   a.optDecimal("interest_rate"),
		IsSalary:       a.boolean("is_salary"),
	}
	if d := a.optDecimal("initial_balance"); d != nil {
		req.InitialBalance = *d
	}
	if err := a.Err(); err != nil {
		return nil, err
	}

	acc, err := s.core.CreateAccount(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{"account": accountValue(acc)})
}

func (s *GrpcServer) ListAccounts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	if err := a.Err(); err != nil {
		return nil, err
	}

	accounts, err := s.core.GetAccounts(ctx, userID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	list := make([]any, 0, len(accounts))
	for i := range accounts {
		list = append(list, accountValue(&accounts[i]))
	}
	return reply(map[string]any{"accounts": list})
}

func (s *GrpcServer) DeleteAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	accountID := a.requireInt64("account_id")
	if err := a.Err(); err != nil {
		return nil, err
	}

	ok, err := s.core.DeleteAccount(ctx, userID, accountID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{"deleted": ok})
}

// ExportStatement 回傳 xlsx 內容 (Struct 中以 base64 字串表示)
func (s *GrpcServer) ExportStatement(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := newArgs(in)
	userID := a.requireInt64("user_id")
	opts := a.historyOptions()
	if err := a.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	rows, err := s.core.ExportStatement(ctx, userID, opts, &buf)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return reply(map[string]any{
		"file_name": "statement_" + time.Now().UTC().Format("20060102_150405") + ".xlsx",
		"rows":      rows,
		"content":   buf.Bytes(),
	})
}

// toStatus 將領域錯誤對應到 gRPC 狀態碼
func (s *GrpcServer) toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrAccountBalanceNotZero),
		errors.Is(err, domain.ErrAccountHasTransfers):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrNoAccessToRelatedTransaction):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrReferenceConflict):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrRetryable):
		code = codes.Aborted
	case errors.Is(err, domain.ErrAmountMustBePositive),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrNoFieldsToUpdate),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidAccountType),
		errors.Is(err, domain.ErrInterestRateRequired),
		errors.Is(err, domain.ErrNegativeInitialBalance),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrDebtOnIncomingTransfer),
		errors.Is(err, domain.ErrInvalidSortField),
		errors.Is(err, domain.ErrInvalidCursor):
		code = codes.InvalidArgument
	case errors.Is(err, usecase.ErrStatementUnavailable):
		code = codes.Unimplemented
	default:
		// 包含 ErrInvalidTransferPair 與未預期的資料庫錯誤
		s.logger.Error("ledger request failed", "error", err)
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// LoggingInterceptor 記錄每個請求的方法、耗時與狀態碼
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
