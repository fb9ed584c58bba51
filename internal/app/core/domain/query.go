package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// SortField 歷史查詢可排序欄位
type SortField string

const (
	SortByDate   SortField = "date"
	SortByAmount SortField = "amount"
	SortByType   SortField = "type"
)

// SortDirection 排序方向
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSort 解析 "-date" / "amount" 形式的排序參數
// 前綴 "-" 代表 DESC，空字串為 date DESC
func ParseSort(sort string) (SortField, SortDirection, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return SortByDate, SortDesc, nil
	}
	dir := SortAsc
	if strings.HasPrefix(sort, "-") {
		dir = SortDesc
		sort = sort[1:]
	}
	field := SortField(sort)
	if !field.Valid() {
		return "", "", ErrInvalidSortField
	}
	return field, dir, nil
}

// Valid 是否為允許的排序欄位
func (f SortField) Valid() bool {
	switch f {
	case SortByDate, SortByAmount, SortByType:
		return true
	}
	return false
}

// ParseCursor 將游標字串轉回排序欄位的型別
func (f SortField) ParseCursor(cursor string) (any, error) {
	switch f {
	case SortByDate:
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		return t.UTC(), nil
	case SortByAmount:
		d, err := decimal.NewFromString(cursor)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		return d, nil
	case SortByType:
		t := TransactionType(cursor)
		if !t.Valid() {
			return nil, ErrInvalidCursor
		}
		return string(t), nil
	}
	return nil, ErrInvalidSortField
}

// CursorOf 取出該筆紀錄在排序欄位上的值，作為下一頁的游標
func (f SortField) CursorOf(e *HistoryEntry) string {
	switch f {
	case SortByAmount:
		return e.Amount.String()
	case SortByType:
		return string(e.Type)
	default:
		return e.Date.UTC().Format(time.RFC3339Nano)
	}
}

// DateWindow 以日為單位的日期區間 [From, To)
type DateWindow struct {
	From *time.Time
	To   *time.Time
}

// IsZero 沒有任何日期條件
func (w DateWindow) IsZero() bool {
	return w.From == nil && w.To == nil
}

// NewDateWindow 依單日或起訖日建立區間
// 指定 day 時忽略起訖日；end 包含當天整日
func NewDateWindow(day, start, end *time.Time) DateWindow {
	var w DateWindow
	if day != nil {
		from := startOfDay(*day)
		to := from.AddDate(0, 0, 1)
		w.From, w.To = &from, &to
		return w
	}
	if start != nil {
		from := startOfDay(*start)
		w.From = &from
	}
	if end != nil {
		to := startOfDay(*end).AddDate(0, 0, 1)
		w.To = &to
	}
	return w
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// HistoryOptions 交易歷史查詢條件
//
// AfterID 非零時與 Cursor 組成 (排序值, id) 複合游標，排序值相同的資料不會被跳過。
type HistoryOptions struct {
	AccountID     *int64
	TypeFilter    *TransactionType
	Date          *time.Time
	StartDate     *time.Time
	EndDate       *time.Time
	Cursor        string
	AfterID       int64
	Limit         int
	SortField     SortField
	SortDirection SortDirection
	// Lookahead 多取一筆以判斷是否還有下一頁
	Lookahead bool
}

// Normalize 補上預設值並檢查排序條件
func (o *HistoryOptions) Normalize() error {
	if o.Limit <= 0 {
		o.Limit = DefaultHistoryLimit
	}
	if o.Limit > MaxHistoryLimit {
		o.Limit = MaxHistoryLimit
	}
	if o.SortField == "" {
		o.SortField = SortByDate
	}
	if !o.SortField.Valid() {
		return ErrInvalidSortField
	}
	switch o.SortDirection {
	case "":
		o.SortDirection = SortDesc
	case SortAsc, SortDesc:
	default:
		return ErrInvalidSortField
	}
	if o.TypeFilter != nil && !o.TypeFilter.Valid() {
		return ErrInvalidTransactionType
	}
	return nil
}

// Window 查詢的日期區間
func (o HistoryOptions) Window() DateWindow {
	return NewDateWindow(o.Date, o.StartDate, o.EndDate)
}

// FetchLimit 實際向資料庫要求的筆數
func (o HistoryOptions) FetchLimit() int {
	if o.Lookahead {
		return o.Limit + 1
	}
	return o.Limit
}

// HistoryEntry 歷史列表中的一筆交易，附帶帳戶顯示資訊
type HistoryEntry struct {
	Transaction
	AccountNumber   string
	AccountName     string
	BankName        string
	AccountCurrency string
}

// HistoryPage 一頁歷史紀錄
type HistoryPage struct {
	Entries       []HistoryEntry
	NextCursor    *string
	HasMore       bool
	Limit         int
	SortField     SortField
	SortDirection SortDirection
}

// BalanceQuery 餘額摘要查詢條件
type BalanceQuery struct {
	AccountID *int64
	StartDate *time.Time
	EndDate   *time.Time
}

// Window 查詢的日期區間
func (q BalanceQuery) Window() DateWindow {
	return NewDateWindow(nil, q.StartDate, q.EndDate)
}

// AccountBalance 單一帳戶的餘額摘要
//
// 有日期區間時 Balance 為區間內的淨變動，而非某時間點的餘額。
type AccountBalance struct {
	AccountID   int64           `json:"accountId"`
	AccountName string          `json:"accountName"`
	BankName    string          `json:"bankName"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Debt        decimal.Decimal `json:"debt"`
	NetBalance  decimal.Decimal `json:"netBalance"`
}

// BalanceSummary 餘額摘要
type BalanceSummary struct {
	Accounts     []AccountBalance `json:"accounts"`
	TotalBalance decimal.Decimal  `json:"totalBalance"`
	TotalDebt    decimal.Decimal  `json:"totalDebt"`
	NetBalance   decimal.Decimal  `json:"netBalance"`
}

// Add 累加一個帳戶到摘要
func (s *BalanceSummary) Add(b AccountBalance) {
	b.NetBalance = b.Balance.Sub(b.Debt)
	s.Accounts = append(s.Accounts, b)
	s.TotalBalance = s.TotalBalance.Add(b.Balance)
	s.TotalDebt = s.TotalDebt.Add(b.Debt)
	s.NetBalance = s.TotalBalance.Sub(s.TotalDebt)
}
