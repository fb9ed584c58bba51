package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalOp 帳務操作種類
type JournalOp string

const (
	JournalOpDeposit    JournalOp = "deposit"
	JournalOpWithdrawal JournalOp = "withdrawal"
	JournalOpTransfer   JournalOp = "transfer"
	JournalOpUpdate     JournalOp = "update"
	JournalOpDelete     JournalOp = "delete"
)

// JournalEntry 已提交帳務操作的稽核紀錄 (寫入 WAL)
type JournalEntry struct {
	Op             JournalOp       `json:"op"`
	UserID         int64           `json:"userId"`
	TransactionIDs []int64         `json:"transactionIds"`
	AccountIDs     []int64         `json:"accountIds"`
	Amount         decimal.Decimal `json:"amount"`
	At             time.Time       `json:"at"`
}
