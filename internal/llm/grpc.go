package llm

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// CompleteMethod is the full gRPC method name of the completion service.
const CompleteMethod = "/selfimprove.v1.Completion/Complete"

// #region client-struct
// GRPCClient calls a completion service speaking structpb messages:
// request {prompt, model}, response {text}.
type GRPCClient struct {
	conn  grpc.ClientConnInterface
	model string
}

// #endregion client-struct

// #region constructor
// NewGRPCClient connects to the completion server at addr.
func NewGRPCClient(addr, model string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, model: model}, nil
}

// NewGRPCClientWithConn creates a GRPCClient over an existing connection.
func NewGRPCClientWithConn(conn grpc.ClientConnInterface, model string) *GRPCClient {
	return &GRPCClient{conn: conn, model: model}
}

// #endregion constructor

// Close shuts down the connection when the client owns one.
func (c *GRPCClient) Close() error {
	if cc, ok := c.conn.(*grpc.ClientConn); ok {
		return cc.Close()
	}
	return nil
}

// #region complete
// Complete sends prompt to the completion service.
func (c *GRPCClient) Complete(ctx context.Context, prompt string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"prompt": prompt,
		"model":  c.model,
	})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, CompleteMethod, req, resp); err != nil {
		return "", fmt.Errorf("complete rpc: %w", err)
	}

	text, ok := resp.GetFields()["text"]
	if !ok {
		return "", fmt.Errorf("complete rpc: %w: no text field", ErrMalformedResponse)
	}
	if _, isString := text.GetKind().(*structpb.Value_StringValue); !isString {
		return "", fmt.Errorf("complete rpc: %w: text is not a string", ErrMalformedResponse)
	}
	return text.GetStringValue(), nil
}

// #endregion complete

// #region server
// CompletionServer is the server side of the completion service.
type CompletionServer interface {
	Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterCompletionServer registers srv on s.
func RegisterCompletionServer(s grpc.ServiceRegistrar, srv CompletionServer) {
	s.RegisterService(&completionServiceDesc, srv)
}

var completionServiceDesc = grpc.ServiceDesc{
	ServiceName: "selfimprove.v1.Completion",
	HandlerType: (*CompletionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Complete", Handler: completeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "selfimprove/v1/completion.proto",
}

func completeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompletionServer).Complete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompleteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompletionServer).Complete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion server
