package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-fin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
)

// Store 以 gorm 實作帳戶與交易的儲存及帳務操作
//
// 每個帳務操作只開一個資料庫交易，所有 SQL 都透過同一個 tx handle 執行。
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option 定義了 Store 的配置選項函數
type Option func(*Store)

// WithLogger 設定 Store 使用的 logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock 設定取得當下時間的函數 (測試用)
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore 建立一個新的 Store 實例
//
// 參數:
//
//	db: gorm 連線 (MySQL / PostgreSQL)
//	opts: 可選設定
//
// 回傳:
//
//	*Store: Store 實例
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoMigrate 建立或更新資料表
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

// transaction 在單一資料庫交易中執行 fn
// fn 回傳錯誤或 panic 時由 gorm 回滾
func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return classifyStoreError(s.db.WithContext(ctx).Transaction(fn))
}

// classifyStoreError 將死結、鎖等待逾時等可重試的錯誤標記為 domain.ErrRetryable
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213, 1205: // deadlock, lock wait timeout
			return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40P01", "40001", "55P03": // deadlock_detected, serialization_failure, lock_not_available
			return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		}
	}
	return err
}

var (
	_ usecase.Ledger           = (*Store)(nil)
	_ usecase.AccountDirectory = (*Store)(nil)
)
