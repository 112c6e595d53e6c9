package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the license service.
const ServiceName = "keyauth.v1.LicenseService"

const (
	methodValidateLicense = "/" + ServiceName + "/ValidateLicense"
	methodLicenseStatus   = "/" + ServiceName + "/LicenseStatus"
)

// LicenseService is the server side of keyauth.v1.LicenseService. Messages
// are google.protobuf.Struct values so no generated stubs are required.
type LicenseService interface {
	ValidateLicense(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LicenseStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func Register(server grpc.ServiceRegistrar, svc LicenseService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*LicenseService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateLicense",
				Handler:    validateLicenseHandler(svc),
			},
			{
				MethodName: "LicenseStatus",
				Handler:    licenseStatusHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "keyauth/v1/license.proto",
	}, svc)
}

func (s *GRPCServer) ValidateLicense(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key := req.GetFields()["license_key"].GetStringValue()
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "missing license_key")
	}
	hwid := req.GetFields()["hwid"].GetStringValue()

	res, err := s.licenses.Validate(ctx, userFromContext(ctx), key, hwid)
	if err != nil {
		return nil, toStatus(err)
	}

	out := map[string]any{"valid": res.Valid}
	if res.Valid {
		out["type"] = string(res.License.Type)
		if res.License.ExpiresAt != nil {
			out["expires_at"] = res.License.ExpiresAt.UTC().Format(time.RFC3339)
		}
	} else {
		out["reason"] = res.Reason
	}

	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *GRPCServer) LicenseStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	views, err := s.licenses.Status(ctx, userFromContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]any, 0, len(views))
	for _, v := range views {
		item := map[string]any{
			"key":      v.Key,
			"type":     string(v.Type),
			"status":   string(v.Status),
			"is_valid": v.Valid,
		}
		if v.ExpiresAt != nil {
			item["expires_at"] = v.ExpiresAt.UTC().Format(time.RFC3339)
		}
		list = append(list, item)
	}

	resp, err := structpb.NewStruct(map[string]any{"licenses": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorInvalidOperation), errors.Is(err, common.ErrorExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func validateLicenseHandler(svc LicenseService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ValidateLicense(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodValidateLicense}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ValidateLicense(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func licenseStatusHandler(svc LicenseService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.LicenseStatus(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLicenseStatus}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.LicenseStatus(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}
