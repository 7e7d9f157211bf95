package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/ledger"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/verification"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type mockSender struct{ mock.Mock }

func (m *mockSender) SendVerificationCode(ctx context.Context, v notify.Verification) error {
	return m.Called(ctx, v).Error(0)
}

// seqGen hands out 100001, 100002, ...
type seqGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%06d", 100000+g.n)
}

// plainHasher keeps tests fast; it is not a real hash.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain:" + p, nil }
func (plainHasher) Verify(p, h string) bool       { return h == "plain:"+p }

type fixture struct {
	svc    *AuthService
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	clock  *timex.ManualClock
	codec  *auth.Codec
	sender *mockSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timex.NewManualClock(t0)
	codec, err := auth.NewCodec([]byte("test-secret"), 15*time.Minute, 7*24*time.Hour, clock)
	require.NoError(t, err)

	f := &fixture{
		tx:     dbx.NewMemoryTransactor(),
		repos:  repomanager.NewMemoryRepositoryManager(),
		clock:  clock,
		codec:  codec,
		sender: &mockSender{},
	}
	f.svc = NewAuthService(AuthDeps{
		Transactor: f.tx,
		Repos:      f.repos,
		Codec:      codec,
		Workflow:   verification.NewWorkflow(&seqGen{}, clock, 15*time.Minute, 60*time.Minute),
		Hasher:     plainHasher{},
		Sender:     f.sender,
		Clock:      clock,
	})
	return f
}

func (f *fixture) account(t *testing.T, id string) *models.Account {
	t.Helper()
	acc, err := f.repos.Accounts(nil).FindByID(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func (f *fixture) activeCount(t *testing.T, id string, p models.TokenPurpose) int {
	t.Helper()
	n, err := f.repos.Tokens(nil).CountActive(context.Background(), id, p)
	require.NoError(t, err)
	return n
}

// registerVerified registers email and verifies it, returning the account id.
func (f *fixture) registerVerified(t *testing.T, email, password string) string {
	t.Helper()
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil).Maybe()

	res, err := f.svc.Register(context.Background(), email, password)
	require.NoError(t, err)
	code := *f.account(t, res.AccountID).VerificationCode

	_, err = f.svc.Verify(context.Background(), res.AccountID, code)
	require.NoError(t, err)
	return res.AccountID
}

// --- Register ---

func TestRegister_CreatesPendingAccountAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.MatchedBy(func(v notify.Verification) bool {
		return v.Email == "a@x.com" && v.Code == "100001" && v.ValidFor == 15*time.Minute && v.AccountID != ""
	})).Return(nil).Once()

	res, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, res)

	acc := f.account(t, res.AccountID)
	assert.False(t, acc.Enabled)
	assert.Equal(t, models.RoleUser, acc.Role)
	assert.Equal(t, "plain:pw", acc.PasswordHash)
	require.True(t, acc.PendingVerification())
	assert.Equal(t, "100001", *acc.VerificationCode)
	assert.Equal(t, t0.Add(15*time.Minute), *acc.VerificationExpiresAt)
	f.sender.AssertExpectations(t)
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), "a@x.com", "other")
	assert.ErrorIs(t, err, common.ErrDuplicateAccount)
	f.sender.AssertNumberOfCalls(t, "SendVerificationCode", 1)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string][2]string{
		"bad email":      {"not-an-email", "pw"},
		"empty email":    {"", "pw"},
		"empty password": {"a@x.com", ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), c[0], c[1])
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
	f.sender.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything)
}

func TestRegister_NotificationFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	res, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.ErrorIs(t, err, common.ErrNotificationFailed)
	require.NotNil(t, res, "account id is still reported")

	acc := f.account(t, res.AccountID)
	assert.False(t, acc.Enabled)
	assert.True(t, acc.PendingVerification())
}

// --- Authenticate ---

func TestAuthenticate_Rejections(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Register(context.Background(), "pending@x.com", "pw")
	require.NoError(t, err)
	f.registerVerified(t, "a@x.com", "pw")

	tests := []struct {
		name, email, password string
		want                  error
	}{
		{"unknown email", "ghost@x.com", "pw", common.ErrInvalidCredentials},
		{"wrong password", "a@x.com", "nope", common.ErrInvalidCredentials},
		{"wrong password on unverified", "pending@x.com", "nope", common.ErrInvalidCredentials},
		{"unverified", "pending@x.com", "pw", common.ErrAccountNotVerified},
		{"email is case-sensitive", "A@X.COM", "pw", common.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Authenticate(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticate_RotatesTokens(t *testing.T) {
	f := newFixture(t)
	id := f.registerVerified(t, "a@x.com", "pw")

	first, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", first.Email)
	assert.Equal(t, models.RoleUser, first.Role)
	assert.Equal(t, 7*24*time.Hour, first.RefreshTTL)

	second, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, 1, f.activeCount(t, id, models.PurposeAccess))
	assert.Equal(t, 1, f.activeCount(t, id, models.PurposeRefresh))

	// old refresh token still decodes but the ledger has moved on
	claims, err := f.codec.Decode(first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)

	_, err = f.svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	_, err = f.svc.Refresh(context.Background(), second.RefreshToken)
	assert.NoError(t, err)
}

// --- Verify ---

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), res.AccountID, "999999")
	assert.ErrorIs(t, err, common.ErrCodeMismatch)

	_, err = f.svc.Verify(context.Background(), "missing", "100001")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)

	sess, err := f.svc.Verify(context.Background(), res.AccountID, "100001")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, "a@x.com", sess.Email)

	acc := f.account(t, res.AccountID)
	assert.True(t, acc.Enabled)
	assert.Nil(t, acc.VerificationCode)
	assert.Nil(t, acc.VerificationExpiresAt)
	assert.Equal(t, 1, f.activeCount(t, acc.ID, models.PurposeAccess))
	assert.Equal(t, 1, f.activeCount(t, acc.ID, models.PurposeRefresh))

	_, err = f.svc.Verify(context.Background(), res.AccountID, "100001")
	assert.ErrorIs(t, err, common.ErrCodeMismatch, "code is consumed")
}

func TestVerify_ExpiredEvenWithCorrectCode(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	_, err = f.svc.Verify(context.Background(), res.AccountID, "100001")
	assert.ErrorIs(t, err, common.ErrVerificationExpired)
	assert.False(t, f.account(t, res.AccountID).Enabled)
}

// --- ResendVerification ---

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.svc.ResendVerification(context.Background(), res.AccountID))

	acc := f.account(t, res.AccountID)
	assert.Equal(t, "100002", *acc.VerificationCode)
	assert.Equal(t, t0.Add(65*time.Minute), *acc.VerificationExpiresAt)
	f.sender.AssertCalled(t, "SendVerificationCode", mock.Anything, mock.MatchedBy(func(v notify.Verification) bool {
		return v.Code == "100002" && v.ValidFor == time.Hour
	}))

	assert.ErrorIs(t, f.svc.ResendVerification(context.Background(), "missing"), common.ErrAccountNotFound)

	_, err = f.svc.Verify(context.Background(), res.AccountID, "100002")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ResendVerification(context.Background(), res.AccountID), common.ErrAlreadyVerified)
}

func TestResendVerification_NotificationFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.MatchedBy(func(v notify.Verification) bool {
		return v.Code == "100001"
	})).Return(nil)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(errors.New("ses throttled"))

	res, err := f.svc.Register(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	err = f.svc.ResendVerification(context.Background(), res.AccountID)
	require.ErrorIs(t, err, common.ErrNotificationFailed)
	assert.Equal(t, "100002", *f.account(t, res.AccountID).VerificationCode)
}

// --- Refresh / Logout ---

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	id := f.registerVerified(t, "a@x.com", "pw")
	sess, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	access, err := f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)

	claims, err := f.codec.Decode(access)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, models.PurposeAccess, claims.Purpose)

	// refresh token survives a plain refresh
	_, err = f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 1, f.activeCount(t, id, models.PurposeAccess))
	assert.Equal(t, 1, f.activeCount(t, id, models.PurposeRefresh))
}

func TestRefresh_Rejections(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "a@x.com", "pw")
	sess, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrMalformedToken)

	_, err = f.svc.Refresh(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken, "access token is not a refresh token")

	// well-signed but never recorded in the ledger
	unknown, err := f.codec.Issue("someone", models.RoleUser, models.PurposeRefresh)
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), unknown)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	// recorded for an account that does not exist
	ghost, err := f.codec.Issue("ghost", models.RoleUser, models.PurposeRefresh)
	require.NoError(t, err)
	require.NoError(t, ledger.New(f.tx, f.repos, f.clock).Rotate(context.Background(), "ghost", models.PurposeRefresh, ghost))
	_, err = f.svc.Refresh(context.Background(), ghost)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)

	f.clock.Advance(7 * 24 * time.Hour)
	_, err = f.svc.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	id := f.registerVerified(t, "a@x.com", "pw")
	sess, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	f.svc.Logout(context.Background(), sess.RefreshToken)
	f.svc.Logout(context.Background(), sess.RefreshToken)
	f.svc.Logout(context.Background(), "never-issued")

	_, err = f.svc.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)
	assert.Zero(t, f.activeCount(t, id, models.PurposeRefresh))
}

// --- IsAccountEnabled / AuthorizeAccess ---

func TestIsAccountEnabled(t *testing.T) {
	f := newFixture(t)
	f.sender.On("SendVerificationCode", mock.Anything, mock.Anything).Return(nil)

	pending, err := f.svc.Register(context.Background(), "p@x.com", "pw")
	require.NoError(t, err)
	id := f.registerVerified(t, "a@x.com", "pw")

	assert.True(t, f.svc.IsAccountEnabled(context.Background(), id))
	assert.False(t, f.svc.IsAccountEnabled(context.Background(), pending.AccountID))
	assert.False(t, f.svc.IsAccountEnabled(context.Background(), "missing"))
}

func TestAuthorizeAccess(t *testing.T) {
	f := newFixture(t)
	id := f.registerVerified(t, "a@x.com", "pw")
	sess, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	claims, err := f.svc.AuthorizeAccess(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)

	_, err = f.svc.AuthorizeAccess(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.AuthorizeAccess(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	fresh, err := f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)
	_, err = f.svc.AuthorizeAccess(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized, "superseded access token")

	f.clock.Advance(15 * time.Minute)
	_, err = f.svc.AuthorizeAccess(context.Background(), fresh)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestAuthenticate_ConcurrentLoginsKeepSingleActive(t *testing.T) {
	f := newFixture(t)
	id := f.registerVerified(t, "a@x.com", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Authenticate(context.Background(), "a@x.com", "pw")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.activeCount(t, id, models.PurposeAccess))
	assert.Equal(t, 1, f.activeCount(t, id, models.PurposeRefresh))
}
