package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	grpc_adapter "github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-fin-ledger/pkg/grpc"
)

const (
	Target      = "localhost:50051"
	UserID      = 1
	TotalCount  = 10000
	Concurrency = 100
)

// 對同一個帳戶併發存款，最後比對餘額摘要
// 每筆存款帶獨立 reference，Aborted (死鎖/鎖等待逾時) 由攔截器重送
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	pool := grpcpool.NewPool(
		grpcpool.WithInterceptor(grpcpool.RetryInterceptor(5, 20*time.Millisecond)),
	)
	defer pool.Close()

	conn, err := pool.GetConnection(Target)
	if err != nil {
		logger.Error("did not connect", "error", err)
		os.Exit(1)
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	created, err := client.Call(ctx, "CreateAccount", map[string]any{
		"user_id":      UserID,
		"account_name": "load-test",
		"bank_name":    "Load Bank",
		"currency":     "USD",
	})
	if err != nil {
		logger.Error("create account failed", "error", err)
		os.Exit(1)
	}
	accountID := int64(created.GetFields()["account"].GetStructValue().GetFields()["id"].GetNumberValue())

	amount := decimal.RequireFromString("1.25")
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	sem := make(chan struct{}, Concurrency)
	startTime := time.Now()

	for i := 0; i < TotalCount; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := client.Deposit(ctx, UserID, accountID, amount, uuid.New()); err != nil {
				failed.Add(1)
				if idx%1000 == 0 {
					logger.Warn("deposit failed", "index", idx, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	summary, err := client.Call(ctx, "GetBalanceSummary", map[string]any{
		"user_id":    UserID,
		"account_id": accountID,
	})
	if err != nil {
		logger.Error("balance summary failed", "error", err)
		os.Exit(1)
	}

	succeeded := int64(TotalCount) - failed.Load()
	logger.Info("load test finished",
		"account_id", accountID,
		"requests", TotalCount,
		"failed", failed.Load(),
		"elapsed", elapsed,
		"tps", float64(TotalCount)/elapsed.Seconds(),
		"expected_balance", amount.Mul(decimal.NewFromInt(succeeded)).String(),
		"total_balance", summary.GetFields()["total_balance"].GetStringValue(),
	)
}
