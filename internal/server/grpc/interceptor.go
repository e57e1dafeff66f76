package grpc

import (
	"context"
	"strings"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// authorize resolves the caller from the "authorization" metadata and
// checks the method's authority. The returned context carries the
// principal when there is one.
func (s *GRPCServer) authorize(ctx context.Context, method string) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(strings.ToLower(common.AuthorizationHeaderName)); len(values) > 0 {
			header = values[0]
		}
	}

	p, ok := s.authn.Authenticate(ctx, header)
	if ok {
		ctx = authn.WithPrincipal(ctx, p)
	}

	if s.public[method] {
		return ctx, nil
	}
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid token")
	}

	want, found := s.methodAuthority[method]
	if !found {
		want = s.defaultAuthority
	}
	if !p.Has(want) {
		return nil, status.Error(codes.PermissionDenied, "access denied")
	}
	return ctx, nil
}

func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authorize(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authedStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) streamAuthInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authorize(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}
