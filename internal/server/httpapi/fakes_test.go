package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/auth"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/config"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/metrics"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/services"
)

type fakeAccounts struct {
	registerFn     func(email, pw string, p models.Profile) (*models.Account, error)
	authenticateFn func(email, pw string) (*models.Account, error)
	changed        []int64
	changeErr      error
	admins         []string
	adminErr       error
}

func (f *fakeAccounts) Register(_ context.Context, email, pw string, p models.Profile) (*models.Account, error) {
	return f.registerFn(email, pw, p)
}

func (f *fakeAccounts) Authenticate(_ context.Context, email, pw string) (*models.Account, error) {
	return f.authenticateFn(email, pw)
}

func (f *fakeAccounts) ChangePassword(_ context.Context, id int64, _ string) (*models.Account, error) {
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	f.changed = append(f.changed, id)
	return &models.Account{ID: id}, nil
}

func (f *fakeAccounts) CreateAdmin(_ context.Context, email, _ string, p models.Profile) (*models.Account, error) {
	if f.adminErr != nil {
		return nil, f.adminErr
	}
	f.admins = append(f.admins, email)
	return &models.Account{ID: int64(100 + len(f.admins)), Email: email, Role: models.RoleAdmin, Status: models.StatusActive, Profile: p}, nil
}

type fakeTokens struct {
	issueErr  error
	issued    []models.TokenKind
	redeemFn  func(token string, kind models.TokenKind) (*models.Account, error)
	resent    []string
	forgotten []string
	resetErr  error
}

func (f *fakeTokens) Issue(_ context.Context, _ *models.Account, kind models.TokenKind) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.issued = append(f.issued, kind)
	return "tok", nil
}

func (f *fakeTokens) Redeem(_ context.Context, token string, kind models.TokenKind) (*models.Account, error) {
	return f.redeemFn(token, kind)
}

func (f *fakeTokens) ResendVerification(_ context.Context, email string) error {
	f.resent = append(f.resent, email)
	return nil
}

func (f *fakeTokens) RequestPasswordReset(_ context.Context, email string) error {
	f.forgotten = append(f.forgotten, email)
	return nil
}

func (f *fakeTokens) ResetPassword(context.Context, string, string) (*models.Account, error) {
	if f.resetErr != nil {
		return nil, f.resetErr
	}
	return &models.Account{}, nil
}

type fakeSessions struct {
	loginFn   func(email, pw string, remember bool) (*auth.TokenPair, *models.Account, error)
	refreshFn func(token string) (string, time.Time, error)
}

func (f *fakeSessions) Login(_ context.Context, email, pw string, remember bool) (*auth.TokenPair, *models.Account, error) {
	return f.loginFn(email, pw, remember)
}

func (f *fakeSessions) Refresh(_ context.Context, token string) (string, time.Time, error) {
	return f.refreshFn(token)
}

type fakeVault struct {
	cards       map[int64][]*models.PaymentCard
	created     []services.CardDetails
	createErr   error
	updated     map[int64]services.CardDetails
	setDefault  [][2]int64
	deleted     [][2]int64
	mutateErr   error
	panicOnList bool
}

func (f *fakeVault) CreateCard(_ context.Context, accountID int64, d services.CardDetails, addr services.BillingAddress) (*models.PaymentCard, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, d)
	return &models.PaymentCard{
		ID: 10, AccountID: accountID, Number: d.Number, CardholderName: d.CardholderName,
		Type: d.Type, ExpirationDate: d.ExpirationDate, IsDefault: true,
		BillingAddress: &models.Address{Street: addr.Street, City: addr.City},
	}, nil
}

func (f *fakeVault) UpdateCard(_ context.Context, accountID, cardID int64, d services.CardDetails, addr services.BillingAddress) (*models.PaymentCard, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	if f.updated == nil {
		f.updated = map[int64]services.CardDetails{}
	}
	f.updated[cardID] = d
	return &models.PaymentCard{
		ID: cardID, AccountID: accountID, Number: d.Number, CardholderName: d.CardholderName,
		Type: d.Type, ExpirationDate: d.ExpirationDate, IsDefault: d.MakeDefault,
		BillingAddress: &models.Address{Street: addr.Street, City: addr.City},
	}, nil
}

func (f *fakeVault) SetDefault(_ context.Context, accountID, cardID int64) error {
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.setDefault = append(f.setDefault, [2]int64{accountID, cardID})
	return nil
}

func (f *fakeVault) DeleteCard(_ context.Context, accountID, cardID int64) error {
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.deleted = append(f.deleted, [2]int64{accountID, cardID})
	return nil
}

func (f *fakeVault) ListForAccount(_ context.Context, accountID int64) ([]*models.PaymentCard, error) {
	if f.panicOnList {
		panic("list exploded")
	}
	return f.cards[accountID], nil
}

func (f *fakeVault) GetDefault(_ context.Context, accountID int64) (*models.PaymentCard, error) {
	for _, c := range f.cards[accountID] {
		if c.IsDefault {
			return c, nil
		}
	}
	return nil, common.ErrCardNotFound
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

// --- fixture ---

type fixture struct {
	handler  http.Handler
	tokens   *auth.TokenService
	metrics  *metrics.Metrics
	accounts *fakeAccounts
	flows    *fakeTokens
	sessions *fakeSessions
	vault    *fakeVault
}

func newFixture(t *testing.T, db Pinger) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	tokens, err := auth.NewTokenService(cfg)
	require.NoError(t, err)

	m := metrics.New()
	f := &fixture{
		tokens:   tokens,
		metrics:  m,
		accounts: &fakeAccounts{},
		flows:    &fakeTokens{},
		sessions: &fakeSessions{},
		vault:    &fakeVault{cards: map[int64][]*models.PaymentCard{}},
	}

	api := New(Deps{
		Accounts:      f.accounts,
		Tokens:        f.flows,
		Sessions:      f.sessions,
		Vault:         f.vault,
		Authenticator: authn.New(tokens, m, logging.Nop{}),
		Metrics:       m,
		DB:            db,
		Logger:        logging.Nop{},
	})
	f.handler = api.Routes()
	return f
}

func (f *fixture) bearer(t *testing.T, id int64, role models.Role) string {
	t.Helper()
	pair, err := f.tokens.IssueSessionPair(&models.Account{ID: id, Email: "a@x.com", Role: role}, false)
	require.NoError(t, err)
	return pair.AccessToken
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorBody](t, rec).Error
}

var errBoom = errors.New("boom")
