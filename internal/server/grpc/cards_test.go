package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/auth"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/config"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeLister struct {
	cards map[int64][]*models.PaymentCard
	err   error
}

func (f *fakeLister) ListForAccount(_ context.Context, accountID int64) ([]*models.PaymentCard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cards[accountID], nil
}

type cardsClient struct {
	conn   *grpc.ClientConn
	tokens *auth.TokenService
}

func startCardsServer(t *testing.T, l CardLister) *cardsClient {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	tokens, err := auth.NewTokenService(cfg)
	require.NoError(t, err)
	srv := NewGRPCServer("", authn.New(tokens, nil, logging.Nop{}), logging.Nop{}, WithPaymentCards(l))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return &cardsClient{conn: conn, tokens: tokens}
}

func (c *cardsClient) call(t *testing.T, method string, accountID int64, role models.Role, req *ListCardsRequest) (*ListCardsResponse, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if role != "" {
		pair, err := c.tokens.IssueSessionPair(&models.Account{ID: accountID, Email: "a@x.com", Role: role}, false)
		require.NoError(t, err)
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+pair.AccessToken)
	}
	resp := &ListCardsResponse{}
	err := c.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(CodecName))
	return resp, err
}

func TestPaymentCards_List(t *testing.T) {
	l := &fakeLister{cards: map[int64][]*models.PaymentCard{
		7:  {{ID: 1, AccountID: 7, Number: "4111111111111111", Type: models.CardVisa, ExpirationDate: "12/2030", IsDefault: true}},
		42: {{ID: 2, AccountID: 42, Number: "5555555555554444"}},
	}}
	c := startCardsServer(t, l)

	_, err := c.call(t, ListCardsMethod, 0, "", &ListCardsRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// The caller always gets their own cards.
	resp, err := c.call(t, ListCardsMethod, 7, models.RoleUser, &ListCardsRequest{AccountID: 42})
	require.NoError(t, err)
	require.Len(t, resp.Cards, 1)
	assert.Equal(t, int64(1), resp.Cards[0].ID)
	assert.Equal(t, "**** **** **** 1111", resp.Cards[0].MaskedNumber)
	assert.True(t, resp.Cards[0].IsDefault)
}

func TestPaymentCards_ListForAccountNeedsAdmin(t *testing.T) {
	l := &fakeLister{cards: map[int64][]*models.PaymentCard{
		42: {{ID: 2, AccountID: 42, Number: "5555555555554444"}},
	}}
	c := startCardsServer(t, l)

	_, err := c.call(t, ListAccountCardsMethod, 7, models.RoleUser, &ListCardsRequest{AccountID: 42})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := c.call(t, ListAccountCardsMethod, 1, models.RoleAdmin, &ListCardsRequest{AccountID: 42})
	require.NoError(t, err)
	require.Len(t, resp.Cards, 1)
	assert.Equal(t, "**** **** **** 4444", resp.Cards[0].MaskedNumber)

	_, err = c.call(t, ListAccountCardsMethod, 1, models.RoleAdmin, &ListCardsRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPaymentCards_Errors(t *testing.T) {
	c := startCardsServer(t, &fakeLister{err: common.ErrAccountNotFound})
	_, err := c.call(t, ListCardsMethod, 7, models.RoleUser, &ListCardsRequest{})
	assert.Equal(t, codes.NotFound, status.Code(err))

	c = startCardsServer(t, &fakeLister{err: errors.New("db password is hunter2")})
	_, err = c.call(t, ListCardsMethod, 7, models.RoleUser, &ListCardsRequest{})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "hunter2")
}
