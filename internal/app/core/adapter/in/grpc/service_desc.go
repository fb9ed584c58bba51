package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務全名
const ServiceName = "ledger.v1.LedgerService"

// LedgerServiceServer 帳務服務
// 請求與回應都是 google.protobuf.Struct，欄位名稱使用 snake_case
type LedgerServiceServer interface {
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Withdraw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalanceSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAccounts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportStatement(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(LedgerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// LedgerServiceDesc 服務描述，供 grpc.Server 註冊
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deposit", Handler: unaryHandler("Deposit", LedgerServiceServer.Deposit)},
		{MethodName: "Withdraw", Handler: unaryHandler("Withdraw", LedgerServiceServer.Withdraw)},
		{MethodName: "Transfer", Handler: unaryHandler("Transfer", LedgerServiceServer.Transfer)},
		{MethodName: "UpdateTransaction", Handler: unaryHandler("UpdateTransaction", LedgerServiceServer.UpdateTransaction)},
		{MethodName: "DeleteTransaction", Handler: unaryHandler("DeleteTransaction", LedgerServiceServer.DeleteTransaction)},
		{MethodName: "GetHistory", Handler: unaryHandler("GetHistory", LedgerServiceServer.GetHistory)},
		{MethodName: "GetBalanceSummary", Handler: unaryHandler("GetBalanceSummary", LedgerServiceServer.GetBalanceSummary)},
		{MethodName: "CreateAccount", Handler: unaryHandler("CreateAccount", LedgerServiceServer.CreateAccount)},
		{MethodName: "ListAccounts", Handler: unaryHandler("ListAccounts", LedgerServiceServer.ListAccounts)},
		{MethodName: "DeleteAccount", Handler: unaryHandler("DeleteAccount", LedgerServiceServer.DeleteAccount)},
		{MethodName: "ExportStatement", Handler: unaryHandler("ExportStatement", LedgerServiceServer.ExportStatement)},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterLedgerServiceServer 註冊帳務服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// unaryHandler 解碼 Struct 請求並經過攔截器呼叫實作
func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
