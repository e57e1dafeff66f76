package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// CodecName is the content subtype of the payment card service. Clients
// call it with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

const (
	ListCardsMethod        = "/cinema.PaymentCards/List"
	ListAccountCardsMethod = "/cinema.PaymentCards/ListForAccount"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

// CardLister is the slice of the payment vault served over gRPC.
type CardLister interface {
	ListForAccount(ctx context.Context, accountID int64) ([]*models.PaymentCard, error)
}

// ListCardsRequest selects whose cards to list. AccountID is only read by
// ListForAccount; List always answers for the caller.
type ListCardsRequest struct {
	AccountID int64 `json:"account_id,omitempty"`
}

type CardSummary struct {
	ID             int64  `json:"id"`
	MaskedNumber   string `json:"masked_number"`
	CardholderName string `json:"cardholder_name"`
	CardType       string `json:"card_type"`
	ExpirationDate string `json:"expiration_date"`
	IsDefault      bool   `json:"is_default"`
}

type ListCardsResponse struct {
	Cards []CardSummary `json:"cards"`
}

// PaymentCardsServer is the handler type of the payment card service.
type PaymentCardsServer interface {
	List(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error)
	ListForAccount(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error)
}

type cardsServer struct {
	s     *GRPCServer
	cards CardLister
}

func (c *cardsServer) List(ctx context.Context, _ *ListCardsRequest) (*ListCardsResponse, error) {
	p, ok := authn.PrincipalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid token")
	}
	return c.list(ctx, p.AccountID)
}

func (c *cardsServer) ListForAccount(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error) {
	if req.AccountID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "account_id is required")
	}
	p, _ := authn.PrincipalFrom(ctx)
	c.s.logger.Info(ctx, "admin listed cards", "admin_account_id", p.AccountID, "account_id", req.AccountID)
	return c.list(ctx, req.AccountID)
}

func (c *cardsServer) list(ctx context.Context, accountID int64) (*ListCardsResponse, error) {
	list, err := c.cards.ListForAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, "not found")
		}
		c.s.logger.Error(ctx, "listing cards failed", "account_id", accountID, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	resp := &ListCardsResponse{Cards: make([]CardSummary, 0, len(list))}
	for _, card := range list {
		resp.Cards = append(resp.Cards, CardSummary{
			ID:             card.ID,
			MaskedNumber:   card.MaskedNumber(),
			CardholderName: card.CardholderName,
			CardType:       string(card.Type),
			ExpirationDate: card.ExpirationDate,
			IsDefault:      card.IsDefault,
		})
	}
	return resp, nil
}

func unaryCardsHandler(method string, call func(PaymentCardsServer, context.Context, *ListCardsRequest) (*ListCardsResponse, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(ListCardsRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentCardsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaymentCardsServer), ctx, req.(*ListCardsRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var paymentCardsServiceDesc = grpc.ServiceDesc{
	ServiceName: "cinema.PaymentCards",
	HandlerType: (*PaymentCardsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "List",
			Handler:    unaryCardsHandler(ListCardsMethod, PaymentCardsServer.List),
		},
		{
			MethodName: "ListForAccount",
			Handler:    unaryCardsHandler(ListAccountCardsMethod, PaymentCardsServer.ListForAccount),
		},
	},
	Streams: []grpc.StreamDesc{},
}
