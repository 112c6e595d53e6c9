package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userKey ctxKey = "user"

// accessTokenInterceptor authenticates calls to the license service. The
// token travels in the authorization metadata key, with or without the
// Bearer prefix. Health checks pass through untouched.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AuthorizationHeaderName)
			if len(values) > 0 {
				accessToken = strings.TrimSpace(values[0])
			}
		}
		if len(accessToken) >= len(common.BearerPrefix) && strings.EqualFold(accessToken[:len(common.BearerPrefix)], common.BearerPrefix) {
			accessToken = strings.TrimSpace(accessToken[len(common.BearerPrefix):])
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		user, err := s.users.Authenticate(ctx, accessToken)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, userKey, user)

	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []any{
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil && status.Code(err) == codes.Internal {
		s.logger.Error(ctx, "grpc call completed", fields...)
	} else {
		s.logger.Debug(ctx, "grpc call completed", fields...)
	}
	return resp, err
}
