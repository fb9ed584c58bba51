package grpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client 帳務服務的精簡客戶端
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call 呼叫任一方法，req 為 snake_case 欄位
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Deposit 存款，reference 用於重送時避免重複入帳
func (c *Client) Deposit(ctx context.Context, userID, accountID int64, amount decimal.Decimal, reference uuid.UUID) (*structpb.Struct, error) {
	return c.Call(ctx, "Deposit", map[string]any{
		"user_id":    userID,
		"account_id": accountID,
		"amount":     amount.String(),
		"reference":  reference.String(),
	})
}

// BalanceSummary 使用者所有帳戶的餘額摘要
func (c *Client) BalanceSummary(ctx context.Context, userID int64) (*structpb.Struct, error) {
	return c.Call(ctx, "GetBalanceSummary", map[string]any{"user_id": userID})
}

// StatementContent 取出 ExportStatement 回應中的 xlsx 內容
func StatementContent(resp *structpb.Struct) ([]byte, error) {
	encoded := resp.GetFields()["content"].GetStringValue()
	return base64.StdEncoding.DecodeString(encoded)
}
