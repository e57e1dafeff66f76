package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/cryptox"
	"github.com/ttn64681/SWE-Final-Proj/internal/dbx"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/accounts"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/addresses"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/cards"
)

// --- helpers ---

func newTestHasher(t *testing.T) *cryptox.PasswordHasher {
	t.Helper()
	h, err := cryptox.NewPasswordHasher(4)
	require.NoError(t, err)
	return h
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- in-memory store ---

type memStore struct {
	mu        sync.Mutex
	seq       int64
	accounts  map[int64]*models.Account
	addresses map[int64]*models.Address
	cards     map[int64]*models.PaymentCard
	now       func() time.Time

	// fail makes the named repository method return the error; failOnce
	// does so for the next call only.
	fail     map[string]error
	failOnce map[string]error

	// stall is slept after reads that a concurrent writer could
	// invalidate, widening race windows.
	stall time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  map[int64]*models.Account{},
		addresses: map[int64]*models.Address{},
		cards:     map[int64]*models.PaymentCard{},
		now:       time.Now,
		fail:      map[string]error{},
		failOnce:  map[string]error{},
	}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *memStore) failure(method string) error {
	if err, ok := s.failOnce[method]; ok {
		delete(s.failOnce, method)
		return err
	}
	return s.fail[method]
}

func (s *memStore) pause() {
	if s.stall > 0 {
		time.Sleep(s.stall)
	}
}

func (s *memStore) cardCount(accountID int64) int {
	_, total := s.defaultCount(accountID)
	return total
}

func (s *memStore) seedAccount(status models.AccountStatus) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	a := &models.Account{
		ID:           id,
		Email:        fmt.Sprintf("user%d@example.com", id),
		PasswordHash: "$2a$04$seeded",
		Role:         models.RoleUser,
		Status:       status,
		Profile:      models.Profile{FirstName: "Seed"},
	}
	s.accounts[id] = a
	cp := *a
	return &cp
}

func (s *memStore) account(id int64) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *memStore) defaultCount(accountID int64) (defaults, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.AccountID != accountID {
			continue
		}
		total++
		if c.IsDefault {
			defaults++
		}
	}
	return defaults, total
}

func (s *memStore) addressCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.addresses)
}

type memManager struct{ s *memStore }

func (m memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memManager) Accounts(db dbx.DBTX) accounts.Repository     { return memAccounts{m.s, db} }
func (m memManager) Addresses(dbx.DBTX) addresses.Repository      { return memAddresses{m.s} }
func (m memManager) Cards(dbx.DBTX) cards.Repository              { return memCards{m.s} }

// --- accounts ---

// memAccounts keeps rows in the store but takes row locks through db, so
// they last as long as the caller's transaction.
type memAccounts struct {
	s  *memStore
	db dbx.DBTX
}

func (r memAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("accounts.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return nil, common.ErrDuplicateAccount
		}
	}
	cp := *a
	cp.ID = r.s.nextID()
	cp.CreatedAt, cp.UpdatedAt = r.s.now(), r.s.now()
	r.s.accounts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r memAccounts) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("accounts.ExistsByEmail"); err != nil {
		return false, err
	}
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("accounts.GetByEmail"); err != nil {
		return nil, err
	}
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrAccountNotFound
}

func (r memAccounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("accounts.GetByID"); err != nil {
		return nil, err
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAccounts) GetByTokenForUpdate(_ context.Context, kind models.TokenKind, digest string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		var held *string
		switch kind {
		case models.TokenKindVerification:
			held = a.VerificationToken
		case models.TokenKindPasswordReset:
			held = a.ResetToken
		}
		if held != nil && *held == digest {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrTokenNotFound
}

func (r memAccounts) LockByID(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	_, ok := r.s.accounts[id]
	r.s.mu.Unlock()
	if !ok {
		return common.ErrAccountNotFound
	}
	_, err := r.db.ExecContext(ctx, lockStatement, id)
	return err
}

func (r memAccounts) Update(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("accounts.Update"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[a.ID]; !ok {
		return common.ErrAccountNotFound
	}
	cp := *a
	cp.UpdatedAt = r.s.now()
	r.s.accounts[a.ID] = &cp
	return nil
}

// --- addresses ---

type memAddresses struct{ s *memStore }

func (r memAddresses) Create(_ context.Context, a *models.Address) (*models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("addresses.Create"); err != nil {
		return nil, err
	}
	cp := *a
	cp.ID = r.s.nextID()
	r.s.addresses[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r memAddresses) GetByID(_ context.Context, id int64) (*models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("addresses.GetByID"); err != nil {
		return nil, err
	}
	a, ok := r.s.addresses[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAddresses) Update(_ context.Context, a *models.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("addresses.Update"); err != nil {
		return err
	}
	existing, ok := r.s.addresses[a.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cp := *a
	cp.AccountID, cp.Type = existing.AccountID, existing.Type
	r.s.addresses[a.ID] = &cp
	return nil
}

func (r memAddresses) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.addresses, id)
	return nil
}

// --- cards ---

type memCards struct{ s *memStore }

func (r memCards) withAddress(c *models.PaymentCard) *models.PaymentCard {
	cp := *c
	if a, ok := r.s.addresses[c.BillingAddressID]; ok {
		addr := *a
		cp.BillingAddress = &addr
	}
	return &cp
}

func (r memCards) Create(_ context.Context, c *models.PaymentCard) (*models.PaymentCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("cards.Create"); err != nil {
		return nil, err
	}
	cp := *c
	cp.ID = r.s.nextID()
	// Sequence-based timestamps keep creation order stable.
	cp.CreatedAt = r.s.now().Add(time.Duration(cp.ID) * time.Millisecond)
	cp.UpdatedAt = cp.CreatedAt
	cp.BillingAddress = nil
	r.s.cards[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r memCards) GetByID(_ context.Context, id int64) (*models.PaymentCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, common.ErrCardNotFound
	}
	return r.withAddress(c), nil
}

func (r memCards) sorted(accountID int64) []*models.PaymentCard {
	var out []*models.PaymentCard
	for _, c := range r.s.cards {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r memCards) ListByAccount(_ context.Context, accountID int64) ([]*models.PaymentCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("cards.ListByAccount"); err != nil {
		return nil, err
	}
	var out []*models.PaymentCard
	for _, c := range r.sorted(accountID) {
		out = append(out, r.withAddress(c))
	}
	return out, nil
}

func (r memCards) GetDefault(_ context.Context, accountID int64) (*models.PaymentCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.cards {
		if c.AccountID == accountID && c.IsDefault {
			return r.withAddress(c), nil
		}
	}
	return nil, common.ErrCardNotFound
}

func (r memCards) Update(_ context.Context, c *models.PaymentCard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("cards.Update"); err != nil {
		return err
	}
	existing, ok := r.s.cards[c.ID]
	if !ok {
		return common.ErrCardNotFound
	}
	existing.EncryptedNumber = c.EncryptedNumber
	existing.CardholderName = c.CardholderName
	existing.Type = c.Type
	existing.ExpirationDate = c.ExpirationDate
	existing.UpdatedAt = r.s.now()
	c.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r memCards) CountByAccount(_ context.Context, accountID int64) (int, error) {
	r.s.mu.Lock()
	n := len(r.sorted(accountID))
	r.s.mu.Unlock()
	r.s.pause()
	return n, nil
}

func (r memCards) ClearDefault(_ context.Context, accountID int64) error {
	r.s.mu.Lock()
	for _, c := range r.s.cards {
		if c.AccountID == accountID {
			c.IsDefault = false
		}
	}
	r.s.mu.Unlock()
	r.s.pause()
	return nil
}

func (r memCards) SetDefault(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return common.ErrCardNotFound
	}
	c.IsDefault = true
	return nil
}

func (r memCards) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("cards.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.cards[id]; !ok {
		return common.ErrCardNotFound
	}
	delete(r.s.cards, id)
	return nil
}

func (r memCards) PromoteEarliest(_ context.Context, accountID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var earliest *models.PaymentCard
	for _, c := range r.s.cards {
		if c.AccountID == accountID && (earliest == nil || c.ID < earliest.ID) {
			earliest = c
		}
	}
	if earliest == nil {
		return 0, nil
	}
	earliest.IsDefault = true
	return earliest.ID, nil
}

// --- notifier ---

type sentToken struct {
	Email string
	Token string
	TTL   time.Duration
}

type fakeNotifier struct {
	mu           sync.Mutex
	verification []sentToken
	reset        []sentToken
	changed      []string
	promotions   []string
	criticalErr  error
}

func (n *fakeNotifier) SendVerification(_ context.Context, a *models.Account, token string, ttl time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.criticalErr != nil {
		return n.criticalErr
	}
	n.verification = append(n.verification, sentToken{a.Email, token, ttl})
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, a *models.Account, token string, ttl time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.criticalErr != nil {
		return n.criticalErr
	}
	n.reset = append(n.reset, sentToken{a.Email, token, ttl})
	return nil
}

func (n *fakeNotifier) SendPasswordChanged(_ context.Context, a *models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, a.Email)
}

func (n *fakeNotifier) SendPromotionsEnrollment(_ context.Context, a *models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.promotions = append(n.promotions, a.Email)
}

// --- cipher ---

// prefixCipher is a reversible stand-in for the AES card cipher.
type prefixCipher struct{ encErr error }

func (c prefixCipher) Encrypt(p string) (string, error) {
	if c.encErr != nil {
		return "", c.encErr
	}
	return "enc:" + p, nil
}

func (c prefixCipher) Decrypt(s string) (string, error) {
	if !strings.HasPrefix(s, "enc:") {
		return "", common.ErrEncryptionFailure
	}
	return strings.TrimPrefix(s, "enc:"), nil
}
