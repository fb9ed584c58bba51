package grpc

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
)

// args 從 Struct 請求讀取欄位
// 只保留第一個錯誤，讀完後檢查 Err()
type args struct {
	fields map[string]*structpb.Value
	err    error
}

func newArgs(in *structpb.Struct) *args {
	return &args{fields: in.GetFields()}
}

func (a *args) fail(key string, format string, v ...any) {
	if a.err == nil {
		a.err = status.Errorf(codes.InvalidArgument, "%s: %s", key, fmt.Sprintf(format, v...))
	}
}

// Err 第一個解析錯誤 (codes.InvalidArgument)
func (a *args) Err() error {
	return a.err
}

func (a *args) present(key string) (*structpb.Value, bool) {
	v, ok := a.fields[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func (a *args) requireInt64(key string) int64 {
	v := a.optInt64(key)
	if v == nil {
		a.fail(key, "is required")
		return 0
	}
	return *v
}

func (a *args) optInt64(key string) *int64 {
	v, ok := a.present(key)
	if !ok {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			a.fail(key, "must be an integer")
			return nil
		}
		i := int64(n)
		return &i
	case *structpb.Value_StringValue:
		i, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			a.fail(key, "must be an integer")
			return nil
		}
		return &i
	}
	a.fail(key, "must be an integer")
	return nil
}

func (a *args) optInt(key string) int {
	if v := a.optInt64(key); v != nil {
		return int(*v)
	}
	return 0
}

// requireDecimal 金額以字串傳遞，數字也接受
func (a *args) requireDecimal(key string) decimal.Decimal {
	d := a.optDecimal(key)
	if d == nil {
		a.fail(key, "is required")
		return decimal.Zero
	}
	return *d
}

func (a *args) optDecimal(key string) *decimal.Decimal {
	v, ok := a.present(key)
	if !ok {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			a.fail(key, "invalid decimal %q", kind.StringValue)
			return nil
		}
		return &d
	case *structpb.Value_NumberValue:
		d := decimal.NewFromFloat(kind.NumberValue)
		return &d
	}
	a.fail(key, "must be a decimal string")
	return nil
}

func (a *args) optString(key string) *string {
	v, ok := a.present(key)
	if !ok {
		return nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		a.fail(key, "must be a string")
		return nil
	}
	return &s.StringValue
}

func (a *args) str(key string) string {
	if s := a.optString(key); s != nil {
		return *s
	}
	return ""
}

func (a *args) optBool(key string) *bool {
	v, ok := a.present(key)
	if !ok {
		return nil
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		a.fail(key, "must be a bool")
		return nil
	}
	return &b.BoolValue
}

func (a *args) boolean(key string) bool {
	if b := a.optBool(key); b != nil {
		return *b
	}
	return false
}

// optTime 接受 RFC3339 或 YYYY-MM-DD
func (a *args) optTime(key string) *time.Time {
	s := a.optString(key)
	if s == nil {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	a.fail(key, "invalid date %q", *s)
	return nil
}

func (a *args) optUUID(key string) *uuid.UUID {
	s := a.optString(key)
	if s == nil {
		return nil
	}
	u, err := uuid.Parse(*s)
	if err != nil {
		a.fail(key, "invalid uuid: %v", err)
		return nil
	}
	return &u
}

// historyOptions 讀取歷史查詢條件 (GetHistory / ExportStatement 共用)
func (a *args) historyOptions() domain.HistoryOptions {
	opts := domain.HistoryOptions{
		AccountID: a.optInt64("account_id"),
		Date:      a.optTime("date"),
		StartDate: a.optTime("start_date"),
		EndDate:   a.optTime("end_date"),
		Cursor:    a.str("cursor"),
		Limit:     a.optInt("limit"),
	}
	if t := a.optString("type"); t != nil {
		tt := domain.TransactionType(*t)
		opts.TypeFilter = &tt
	}
	field, dir, err := domain.ParseSort(a.str("sort"))
	if err != nil {
		a.fail("sort", "%v", err)
	}
	opts.SortField, opts.SortDirection = field, dir
	return opts
}

func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optionalInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func transactionValue(t *domain.Transaction) map[string]any {
	m := map[string]any{
		"id":                     t.ID,
		"account_id":             t.AccountID,
		"related_account_id":     optionalInt64(t.RelatedAccountID),
		"related_transaction_id": optionalInt64(t.RelatedTransactionID),
		"amount":                 t.Amount.String(),
		"type":                   string(t.Type),
		"status":                 t.Status,
		"description":            optionalString(t.Description),
		"is_debt":                t.IsDebt,
		"debt_applied":           t.DebtApplied.String(),
		"date":                   timeString(t.Date),
		"created_at":             timeString(t.CreatedAt),
		"updated_at":             timeString(t.UpdatedAt),
		"related_account_name":   optionalString(t.RelatedAccountName),
		"related_bank_name":      optionalString(t.RelatedBankName),
		"reference":              nil,
	}
	if t.Reference != nil {
		m["reference"] = t.Reference.String()
	}
	return m
}

func historyEntryValue(e *domain.HistoryEntry) map[string]any {
	m := transactionValue(&e.Transaction)
	m["account_number"] = e.AccountNumber
	m["account_name"] = e.AccountName
	m["bank_name"] = e.BankName
	m["account_currency"] = e.AccountCurrency
	return m
}

func accountValue(a *domain.Account) map[string]any {
	m := map[string]any{
		"id":              a.ID,
		"user_id":         a.UserID,
		"account_number":  a.AccountNumber,
		"account_name":    a.AccountName,
		"bank_identifier": a.BankIdentifier,
		"bank_name":       a.BankName,
		"type":            string(a.Type),
		"currency":        a.Currency,
		"balance":         a.Balance.String(),
		"debt":            a.Debt.String(),
		"net_balance":     a.NetBalance().String(),
		"plan":            optionalString(a.Plan),
		"interest_rate":   nil,
		"is_salary":       a.IsSalary,
		"created_at":      timeString(a.CreatedAt),
		"updated_at":      timeString(a.UpdatedAt),
	}
	if a.InterestRate != nil {
		m["interest_rate"] = a.InterestRate.String()
	}
	return m
}

func summaryValue(s *domain.BalanceSummary) map[string]any {
	accounts := make([]any, 0, len(s.Accounts))
	for _, b := range s.Accounts {
		accounts = append(accounts, map[string]any{
			"account_id":   b.AccountID,
			"account_name": b.AccountName,
			"bank_name":    b.BankName,
			"currency":     b.Currency,
			"balance":      b.Balance.String(),
			"debt":         b.Debt.String(),
			"net_balance":  b.NetBalance.String(),
		})
	}
	return map[string]any{
		"accounts":      accounts,
		"total_balance": s.TotalBalance.String(),
		"total_debt":    s.TotalDebt.String(),
		"net_balance":   s.NetBalance.String(),
	}
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
