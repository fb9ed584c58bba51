package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryInterceptor 在伺服器回傳指定狀態碼時重送請求
// 帳務服務遇到死鎖或鎖等待逾時會回傳 codes.Aborted，整筆交易已回滾，可安全重送
//
// 參數:
//
//	maxAttempts: int - 含第一次在內的最多嘗試次數
//	backoff: time.Duration - 第 n 次重試前等待 n * backoff
//	retryable: ...codes.Code - 需要重試的狀態碼，未指定時為 codes.Aborted
func RetryInterceptor(maxAttempts int, backoff time.Duration, retryable ...codes.Code) grpc.UnaryClientInterceptor {
	if len(retryable) == 0 {
		retryable = []codes.Code{codes.Aborted}
	}
	shouldRetry := func(err error) bool {
		code := status.Code(err)
		for _, c := range retryable {
			if code == c {
				return true
			}
		}
		return false
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var err error
		for attempt := 1; ; attempt++ {
			err = invoker(ctx, method, req, reply, cc, opts...)
			if err == nil || attempt >= maxAttempts || !shouldRetry(err) {
				return err
			}
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
	}
}
