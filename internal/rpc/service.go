package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const ServiceName = "todo.TodoService"

const (
	methodList     = "/" + ServiceName + "/List"
	methodGetByID  = "/" + ServiceName + "/GetById"
	methodCreate   = "/" + ServiceName + "/Create"
	methodUpdate   = "/" + ServiceName + "/Update"
	methodDelete   = "/" + ServiceName + "/Delete"
	methodComplete = "/" + ServiceName + "/Complete"
)

// TodoServiceServer is implemented by the backend. Errors should be gRPC
// status errors.
type TodoServiceServer interface {
	List(context.Context, *ListRequest) (*Todos, error)
	GetByID(context.Context, *TodoID) (*Todo, error)
	Create(context.Context, *CreateRequest) (*Todo, error)
	Update(context.Context, *UpdateRequest) (*Todo, error)
	Delete(context.Context, *TodoID) (*Empty, error)
	Complete(context.Context, *TodoID) (*Todo, error)
}

func RegisterTodoServiceServer(s grpc.ServiceRegistrar, srv TodoServiceServer) {
	s.RegisterService(&todoServiceDesc, srv)
}

var todoServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TodoServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unaryHandler(methodList, TodoServiceServer.List)},
		{MethodName: "GetById", Handler: unaryHandler(methodGetByID, TodoServiceServer.GetByID)},
		{MethodName: "Create", Handler: unaryHandler(methodCreate, TodoServiceServer.Create)},
		{MethodName: "Update", Handler: unaryHandler(methodUpdate, TodoServiceServer.Update)},
		{MethodName: "Delete", Handler: unaryHandler(methodDelete, TodoServiceServer.Delete)},
		{MethodName: "Complete", Handler: unaryHandler(methodComplete, TodoServiceServer.Complete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "todo.proto",
}

// unaryHandler adapts a TodoServiceServer method expression to the shape
// grpc.MethodDesc expects, running any configured interceptor.
func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(TodoServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TodoServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TodoServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TodoServiceClient is the caller side used by the gateway.
type TodoServiceClient interface {
	List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*Todos, error)
	GetByID(ctx context.Context, in *TodoID, opts ...grpc.CallOption) (*Todo, error)
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*Todo, error)
	Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*Todo, error)
	Delete(ctx context.Context, in *TodoID, opts ...grpc.CallOption) (*Empty, error)
	Complete(ctx context.Context, in *TodoID, opts ...grpc.CallOption) (*Todo, error)
}

type todoServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTodoServiceClient(cc grpc.ClientConnInterface) TodoServiceClient {
	return &todoServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *todoServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*Todos, error) {
	return invoke[Todos](ctx, c.cc, methodList, in, opts)
}

func (c *todoServiceClient) GetByID(ctx context.Context, in *TodoID, opts ...grpc.CallOption) (*Todo, error) {
	return invoke[Todo](ctx, c.cc, methodGetByID, in, opts)
}

func (c *todoServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*Todo, error) {
	return invoke[Todo](ctx, c.cc, methodCreate, in, opts)
}

func (c *todoServiceClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*Todo, error) {
	return invoke[Todo](ctx, c.cc, methodUpdate, in, opts)
}

func (c *todoServiceClient) Delete(ctx context.Context, in *TodoID, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, methodDelete, in, opts)
}

func (c *todoServiceClient) Complete(ctx context.Context, in *TodoID, opts ...grpc.CallOption) (*Todo, error) {
	return invoke[Todo](ctx, c.cc, methodComplete, in, opts)
}

// Dial opens a plaintext connection to the todo backend. The connection is
// lazy; the first call establishes it.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial todo service %s: %w", addr, err)
	}
	return conn, nil
}
