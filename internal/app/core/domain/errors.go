package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCurrencyMismatch 轉帳雙方幣別不同
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrSameAccount 轉出與轉入帳戶相同
	ErrSameAccount = errors.New("from and to account are the same")

	// ErrAccountNotFound 找不到帳戶 (或不屬於該使用者)
	ErrAccountNotFound = errors.New("account not found or access denied")

	// ErrTransactionNotFound 找不到交易 (或不屬於該使用者)
	ErrTransactionNotFound = errors.New("transaction not found or access denied")

	// ErrNoFieldsToUpdate 更新請求沒有任何欄位
	ErrNoFieldsToUpdate = errors.New("no fields to update")

	// ErrNoAccessToRelatedTransaction 轉帳另一腳所屬帳戶不屬於該使用者
	ErrNoAccessToRelatedTransaction = errors.New("no access to related transaction")

	// ErrInvalidTransferPair 轉帳兩腳資料不完整，代表資料已損毀
	ErrInvalidTransferPair = errors.New("invalid transfer transaction pair")

	// ErrInvalidCurrency 幣別必須為三碼
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")

	// ErrInvalidAccountType 帳戶類型不合法
	ErrInvalidAccountType = errors.New("invalid account type")

	// ErrInterestRateRequired 非 deposit 類型帳戶必須提供利率
	ErrInterestRateRequired = errors.New("interest rate is required for this account type")

	// ErrNegativeInitialBalance 初始餘額不可為負
	ErrNegativeInitialBalance = errors.New("initial balance must not be negative")

	// ErrAccountBalanceNotZero 餘額不為零不可刪除帳戶
	ErrAccountBalanceNotZero = errors.New("account balance is not zero")

	// ErrAccountHasTransfers 帳戶仍有轉帳紀錄，刪除會讓對方帳戶的另一腳失去配對
	ErrAccountHasTransfers = errors.New("account still has transfer transactions")

	// ErrReferenceConflict 追蹤號已被其他帳戶或其他類型的交易使用
	ErrReferenceConflict = errors.New("reference already used by another transaction")

	// ErrDebtOnIncomingTransfer transfer_in 不可標記為債務
	ErrDebtOnIncomingTransfer = errors.New("transfer_in cannot be marked as debt")

	// ErrInvalidTransactionType 交易類型不合法
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidSortField 排序欄位不合法
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidCursor 分頁游標無法解析
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrRetryable 死結或鎖等待逾時，呼叫端可重試
	ErrRetryable = errors.New("retryable store failure")
)
