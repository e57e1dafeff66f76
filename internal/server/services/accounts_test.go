package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

func newAccountService(t *testing.T) (*AccountService, *memStore, *fakeNotifier) {
	t.Helper()
	store := newMemStore()
	n := &fakeNotifier{}
	return NewAccountService(newTxDB(t), memManager{store}, newTestHasher(t), n, logging.Nop{}), store, n
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
}

func TestRegister_Success(t *testing.T) {
	s, store, n := newAccountService(t)

	a, err := s.Register(context.Background(), " A@X.com", "pw1", models.Profile{FirstName: "Ann"})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", a.Email)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.Equal(t, models.RoleUser, a.Role)
	assert.NotEqual(t, "pw1", a.PasswordHash)
	assert.NotEmpty(t, a.PasswordHash)
	assert.NotNil(t, store.account(a.ID))
	assert.Empty(t, n.promotions)
}

func TestRegister_DuplicateIsCaseInsensitive(t *testing.T) {
	s, _, _ := newAccountService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "a@x.com", "pw1", models.Profile{})
	require.NoError(t, err)

	_, err = s.Register(ctx, "A@X.com", "other", models.Profile{})
	require.ErrorIs(t, err, common.ErrDuplicateAccount)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestRegister_DuplicateRaceFromStore(t *testing.T) {
	s, store, _ := newAccountService(t)
	store.fail["accounts.Create"] = common.ErrDuplicateAccount

	_, err := s.Register(context.Background(), "a@x.com", "pw1", models.Profile{})
	require.ErrorIs(t, err, common.ErrDuplicateAccount)
}

func TestRegister_InvalidInput(t *testing.T) {
	s, _, _ := newAccountService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "not-an-email", "pw1", models.Profile{})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.Register(ctx, "a@x.com", "", models.Profile{})
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestRegister_StoreError(t *testing.T) {
	s, store, _ := newAccountService(t)
	boom := errors.New("boom")
	store.fail["accounts.ExistsByEmail"] = boom

	_, err := s.Register(context.Background(), "a@x.com", "pw1", models.Profile{})
	require.ErrorIs(t, err, boom)
}

func TestRegister_PromotionsOptInSendsEmail(t *testing.T) {
	s, _, n := newAccountService(t)

	_, err := s.Register(context.Background(), "a@x.com", "pw1", models.Profile{PromotionsOptIn: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, n.promotions)
}

func TestAuthenticate(t *testing.T) {
	s, _, _ := newAccountService(t)
	ctx := context.Background()

	registered, err := s.Register(ctx, "a@x.com", "pw1", models.Profile{})
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, "A@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, got.ID)
	// Status is left to the caller.
	assert.Equal(t, models.StatusPending, got.Status)

	_, err = s.Authenticate(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "nobody@x.com", "pw1")
	require.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestAuthenticate_StoreError(t *testing.T) {
	s, store, _ := newAccountService(t)
	boom := errors.New("boom")
	store.fail["accounts.GetByEmail"] = boom

	_, err := s.Authenticate(context.Background(), "a@x.com", "pw1")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, common.ErrAccountNotFound)
}

func TestChangePassword(t *testing.T) {
	s, store, n := newAccountService(t)
	ctx := context.Background()

	a, err := s.Register(ctx, "a@x.com", "old", models.Profile{})
	require.NoError(t, err)

	_, err = s.ChangePassword(ctx, a.ID, "new")
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, "a@x.com", "old")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "a@x.com", "new")
	require.NoError(t, err)

	assert.Nil(t, store.account(a.ID).ResetToken)
	assert.Equal(t, []string{"a@x.com"}, n.changed)
}

func TestChangePassword_Errors(t *testing.T) {
	s, store, n := newAccountService(t)
	ctx := context.Background()

	_, err := s.ChangePassword(ctx, 999, "new")
	require.ErrorIs(t, err, common.ErrAccountNotFound)

	_, err = s.ChangePassword(ctx, 1, "")
	require.ErrorIs(t, err, common.ErrInvalidInput)

	a := store.seedAccount(models.StatusActive)
	boom := errors.New("boom")
	store.fail["accounts.Update"] = boom
	_, err = s.ChangePassword(ctx, a.ID, "new")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, n.changed)
}

func TestCreateAdmin(t *testing.T) {
	s, store, n := newAccountService(t)
	ctx := context.Background()

	a, err := s.CreateAdmin(ctx, " Root@X.com ", "admin-pw1", models.Profile{FirstName: "Ops"})
	require.NoError(t, err)

	got := store.account(a.ID)
	assert.Equal(t, "root@x.com", got.Email)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.NotEqual(t, "admin-pw1", got.PasswordHash)
	assert.Empty(t, n.promotions)

	_, err = s.CreateAdmin(ctx, "root@x.com", "admin-pw1", models.Profile{})
	require.ErrorIs(t, err, common.ErrDuplicateAccount)
	_, err = s.CreateAdmin(ctx, "nope", "admin-pw1", models.Profile{})
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	s, store, _ := newAccountService(t)
	ctx := context.Background()

	first, err := s.EnsureAdmin(ctx, "root@x.com", "admin-pw1")
	require.NoError(t, err)
	second, err := s.EnsureAdmin(ctx, "ROOT@x.com", "different-pw")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.accounts, 1)

	// The stored password is left alone on later runs.
	_, err = s.Authenticate(ctx, "root@x.com", "admin-pw1")
	require.NoError(t, err)
}

func TestEnsureAdmin_DoesNotPromoteUsers(t *testing.T) {
	s, store, _ := newAccountService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "root@x.com", "user-pw1", models.Profile{})
	require.NoError(t, err)

	_, err = s.EnsureAdmin(ctx, "root@x.com", "admin-pw1")
	require.ErrorIs(t, err, common.ErrDuplicateAccount)
	assert.Equal(t, models.RoleUser, store.account(u.ID).Role)
}

func TestEnsureAdmin_StoreError(t *testing.T) {
	s, store, _ := newAccountService(t)
	boom := errors.New("boom")
	store.fail["accounts.GetByEmail"] = boom

	_, err := s.EnsureAdmin(context.Background(), "root@x.com", "admin-pw1")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.accounts)
}
