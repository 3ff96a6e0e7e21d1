package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// This is a compile-time assertion to ensure that this file
// is compatible with the grpc package it is being compiled against.
const _ = grpc.SupportPackageIsVersion9

const (
	AttachmentSigner_ServiceName                      = "signedattach.v1.AttachmentSigner"
	AttachmentSigner_SignMail_FullMethodName          = "/signedattach.v1.AttachmentSigner/SignMail"
	AttachmentSigner_GetSigningRequest_FullMethodName = "/signedattach.v1.AttachmentSigner/GetSigningRequest"
)

// AttachmentSignerClient is the client API for the AttachmentSigner service.
//
// SignMail takes a mail document and answers with {"request_id", "mail"}.
// GetSigningRequest takes {"request_id"} and answers with the audit record.
type AttachmentSignerClient interface {
	SignMail(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSigningRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type attachmentSignerClient struct {
	cc grpc.ClientConnInterface
}

func NewAttachmentSignerClient(cc grpc.ClientConnInterface) AttachmentSignerClient {
	return &attachmentSignerClient{cc}
}

func (c *attachmentSignerClient) SignMail(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, AttachmentSigner_SignMail_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *attachmentSignerClient) GetSigningRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, AttachmentSigner_GetSigningRequest_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AttachmentSignerServer is the server API for the AttachmentSigner service.
// All implementations must embed UnimplementedAttachmentSignerServer
// for forward compatibility.
type AttachmentSignerServer interface {
	SignMail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSigningRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	mustEmbedUnimplementedAttachmentSignerServer()
}

// UnimplementedAttachmentSignerServer must be embedded to have forward compatible implementations.
type UnimplementedAttachmentSignerServer struct{}

func (UnimplementedAttachmentSignerServer) SignMail(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SignMail not implemented")
}

func (UnimplementedAttachmentSignerServer) GetSigningRequest(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSigningRequest not implemented")
}

func (UnimplementedAttachmentSignerServer) mustEmbedUnimplementedAttachmentSignerServer() {}

func RegisterAttachmentSignerServer(s grpc.ServiceRegistrar, srv AttachmentSignerServer) {
	s.RegisterService(&AttachmentSigner_ServiceDesc, srv)
}

func _AttachmentSigner_SignMail_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttachmentSignerServer).SignMail(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AttachmentSigner_SignMail_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttachmentSignerServer).SignMail(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AttachmentSigner_GetSigningRequest_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttachmentSignerServer).GetSigningRequest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AttachmentSigner_GetSigningRequest_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttachmentSignerServer).GetSigningRequest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AttachmentSigner_ServiceDesc is the grpc.ServiceDesc for the AttachmentSigner service.
var AttachmentSigner_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AttachmentSigner_ServiceName,
	HandlerType: (*AttachmentSignerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SignMail",
			Handler:    _AttachmentSigner_SignMail_Handler,
		},
		{
			MethodName: "GetSigningRequest",
			Handler:    _AttachmentSigner_GetSigningRequest_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "signedattach/v1/signer.proto",
}
