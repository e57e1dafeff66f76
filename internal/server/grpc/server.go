// Package grpc runs the gRPC listener. It serves the standard health
// service and, when a card lister is configured, the cinema.PaymentCards
// service. Every call is authenticated with the same bearer tokens as the
// HTTP API; only the health methods are public.
package grpc

import (
	"context"
	"net"

	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	address string
	authn   *authn.Authenticator
	health  *health.Server
	cards   CardLister
	logger  logging.Logger

	// public methods skip the authority check; everything else needs
	// defaultAuthority unless methodAuthority says otherwise.
	public           map[string]bool
	defaultAuthority authn.Authority
	methodAuthority  map[string]authn.Authority
}

type Option func(*GRPCServer)

// WithMethodAuthority requires a specific authority for one full method
// name, e.g. "/cinema.Admin/ListCards".
func WithMethodAuthority(method string, a authn.Authority) Option {
	return func(s *GRPCServer) { s.methodAuthority[method] = a }
}

// WithPaymentCards serves the cinema.PaymentCards service backed by l.
func WithPaymentCards(l CardLister) Option {
	return func(s *GRPCServer) { s.cards = l }
}

// WithPublicMethod lets anonymous callers reach method.
func WithPublicMethod(method string) Option {
	return func(s *GRPCServer) { s.public[method] = true }
}

func NewGRPCServer(address string, a *authn.Authenticator, l logging.Logger, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address: address,
		authn:   a,
		health:  health.NewServer(),
		logger:  l.With("module", "grpc_server"),
		public: map[string]bool{
			healthpb.Health_Check_FullMethodName: true,
			healthpb.Health_Watch_FullMethodName: true,
		},
		defaultAuthority: authn.AuthorityUser,
		methodAuthority: map[string]authn.Authority{
			ListAccountCardsMethod: authn.AuthorityAdmin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.authInterceptor),
		grpc.ChainStreamInterceptor(s.streamAuthInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	if s.cards != nil {
		srv.RegisterService(&paymentCardsServiceDesc, &cardsServer{s: s, cards: s.cards})
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
