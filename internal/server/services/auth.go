// Package services contains server-side business logic. AuthService composes
// the account store, verification workflow, token codec and token ledger into
// the register, login, verify, refresh and logout flows.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/ledger"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/verification"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

var tracer = otel.Tracer("gophauth/services")

// Operation names used for spans, metrics and logs.
const (
	OpRegister  = "register"
	OpLogin     = "login"
	OpVerify    = "verify"
	OpResend    = "resend_verification"
	OpRefresh   = "refresh"
	OpLogout    = "logout"
	OpAuthorize = "authorize"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordLen = 72

// Session is the result of a successful login or verification. The refresh
// token is meant for an out-of-band channel whose lifetime is RefreshTTL.
type Session struct {
	AccessToken  string
	RefreshToken string
	Email        string
	Role         models.Role
	RefreshTTL   time.Duration
}

type RegisterResult struct {
	AccountID string
}

// AuthDeps are the collaborators of AuthService. Clock and Log are optional.
type AuthDeps struct {
	Transactor dbx.Transactor
	Repos      repomanager.RepositoryManager
	Codec      *auth.Codec
	Workflow   *verification.Workflow
	Hasher     auth.PasswordHasher
	Sender     notify.Sender
	Clock      timex.Clock
	Log        logging.Logger
}

type AuthService struct {
	tx       dbx.Transactor
	repos    repomanager.RepositoryManager
	codec    *auth.Codec
	ledger   *ledger.Ledger
	workflow *verification.Workflow
	hasher   auth.PasswordHasher
	sender   notify.Sender
	clock    timex.Clock
	log      logging.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.Clock == nil {
		d.Clock = timex.SystemClock{}
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	return &AuthService{
		tx:       d.Transactor,
		repos:    d.Repos,
		codec:    d.Codec,
		ledger:   ledger.New(d.Transactor, d.Repos, d.Clock),
		workflow: d.Workflow,
		hasher:   d.Hasher,
		sender:   d.Sender,
		clock:    d.Clock,
		log:      d.Log,
	}
}

// RefreshTTL is the refresh token lifetime, e.g. for a cookie max-age.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.codec.TTLFor(models.PurposeRefresh)
}

// Register creates a disabled account and mails it a verification code.
// If the mail cannot be sent the account still exists: the result is
// returned together with common.ErrNotificationFailed.
func (s *AuthService) Register(ctx context.Context, email, password string) (res *RegisterResult, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer s.finish(ctx, span, OpRegister, time.Now(), &err, "email", email)

	if err := validateCredentials(email, password, true); err != nil {
		return nil, err
	}

	repo := s.repos.Accounts(s.tx.Conn())
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrDuplicateAccount
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find account: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	acc := &models.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	code := s.workflow.IssueForRegistration(acc)

	acc, err = repo.Create(ctx, acc)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", acc.ID))

	res = &RegisterResult{AccountID: acc.ID}
	if err := s.notify(ctx, acc, code, s.workflow.RegistrationTTL()); err != nil {
		return res, err
	}
	return res, nil
}

// Authenticate checks credentials and opens a new session, superseding the
// previous access and refresh tokens of the account.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (sess *Session, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authenticate")
	defer s.finish(ctx, span, OpLogin, time.Now(), &err, "email", email)

	if err := validateCredentials(email, password, false); err != nil {
		return nil, err
	}

	acc, err := s.repos.Accounts(s.tx.Conn()).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !s.hasher.Verify(password, acc.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if !acc.Enabled {
		return nil, common.ErrAccountNotVerified
	}

	return s.openSession(ctx, acc)
}

// Verify consumes the verification code of accountID and, on success, opens
// a session exactly as Authenticate does.
func (s *AuthService) Verify(ctx context.Context, accountID, code string) (sess *Session, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Verify", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer s.finish(ctx, span, OpVerify, time.Now(), &err, "account_id", accountID)

	var acc *models.Account
	err = s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		a, err := s.lockAccount(ctx, repo, accountID)
		if err != nil {
			return err
		}
		if err := s.workflow.Check(a, code, s.clock.Now()); err != nil {
			return err
		}
		a.UpdatedAt = s.clock.Now()
		if err := repo.Save(ctx, a); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		acc = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, acc)
}

// ResendVerification replaces the pending code of accountID with a new one
// valid for the resend window and mails it. The new code is kept even when
// the mail fails.
func (s *AuthService) ResendVerification(ctx context.Context, accountID string) (err error) {
	ctx, span := tracer.Start(ctx, "AuthService.ResendVerification", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer s.finish(ctx, span, OpResend, time.Now(), &err, "account_id", accountID)

	var (
		acc  *models.Account
		code string
	)
	err = s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		a, err := s.lockAccount(ctx, repo, accountID)
		if err != nil {
			return err
		}
		c, err := s.workflow.Resend(a)
		if err != nil {
			return err
		}
		a.UpdatedAt = s.clock.Now()
		if err := repo.Save(ctx, a); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		acc, code = a, c
		return nil
	})
	if err != nil {
		return err
	}

	return s.notify(ctx, acc, code, s.workflow.ResendTTL())
}

// Refresh mints a new access token for a valid, active refresh token. The
// refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer s.finish(ctx, span, OpRefresh, time.Now(), &err)

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return "", err
	}
	if claims.Purpose != models.PurposeRefresh {
		return "", common.ErrInvalidRefreshToken
	}
	span.SetAttributes(attribute.String("account.id", claims.Subject))

	active, err := s.ledger.IsActive(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("check refresh token: %w", err)
	}
	if !active {
		return "", common.ErrInvalidRefreshToken
	}

	acc, err := s.repos.Accounts(s.tx.Conn()).FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrAccountNotFound
		}
		return "", fmt.Errorf("find account: %w", err)
	}

	access, err = s.codec.Issue(acc.ID, acc.Role, models.PurposeAccess)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	if err := s.ledger.Rotate(ctx, acc.ID, models.PurposeAccess, access); err != nil {
		return "", err
	}
	return access, nil
}

// Logout revokes refreshToken. It never fails; storage errors are logged.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	var err error
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer s.finish(ctx, span, OpLogout, time.Now(), &err)

	err = s.ledger.Revoke(ctx, refreshToken)
}

// IsAccountEnabled reports whether accountID exists and is verified.
func (s *AuthService) IsAccountEnabled(ctx context.Context, accountID string) bool {
	acc, err := s.repos.Accounts(s.tx.Conn()).FindByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "account lookup failed", "account_id", accountID, "error", err)
		}
		return false
	}
	return acc.Enabled
}

// AuthorizeAccess validates an access token for a protected call. Expired
// tokens yield common.ErrTokenExpired, anything else untrusted
// common.ErrorUnauthorized.
func (s *AuthService) AuthorizeAccess(ctx context.Context, accessToken string) (claims *auth.Claims, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.AuthorizeAccess")
	defer s.finish(ctx, span, OpAuthorize, time.Now(), &err)

	claims, err = s.codec.Decode(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, err
		}
		return nil, common.ErrorUnauthorized
	}
	if claims.Purpose != models.PurposeAccess {
		return nil, common.ErrorUnauthorized
	}

	active, err := s.ledger.IsActive(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("check access token: %w", err)
	}
	if !active {
		return nil, common.ErrorUnauthorized
	}
	return claims, nil
}

// --- helpers below ---

func (s *AuthService) lockAccount(ctx context.Context, repo accounts.Repository, accountID string) (*models.Account, error) {
	a, err := repo.FindByIDForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (s *AuthService) openSession(ctx context.Context, acc *models.Account) (*Session, error) {
	access, err := s.codec.Issue(acc.ID, acc.Role, models.PurposeAccess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.Issue(acc.ID, acc.Role, models.PurposeRefresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.ledger.Rotate(ctx, acc.ID, models.PurposeAccess, access); err != nil {
		return nil, err
	}
	if err := s.ledger.Rotate(ctx, acc.ID, models.PurposeRefresh, refresh); err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		Email:        acc.Email,
		Role:         acc.Role,
		RefreshTTL:   s.RefreshTTL(),
	}, nil
}

func (s *AuthService) notify(ctx context.Context, acc *models.Account, code string, ttl time.Duration) error {
	err := s.sender.SendVerificationCode(ctx, notify.Verification{
		Email:     acc.Email,
		Code:      code,
		AccountID: acc.ID,
		ValidFor:  ttl,
	})
	if err != nil {
		s.log.Error(ctx, "verification mail failed", "account_id", acc.ID, "email", acc.Email, "error", err)
		return fmt.Errorf("%w: %v", common.ErrNotificationFailed, err)
	}
	return nil
}

// finish ends span and records the outcome of op. Rejections with a stable
// kind are logged at Warn, internal failures at Error.
func (s *AuthService) finish(ctx context.Context, span trace.Span, op string, start time.Time, errp *error, args ...any) {
	err := *errp
	metrics.RecordOperation(op, err, time.Since(start))

	args = append(args, "operation", op)
	switch kind := common.Kind(err); {
	case err == nil:
		s.log.Info(ctx, "auth operation succeeded", args...)
	case kind == "Internal":
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.log.Error(ctx, "auth operation failed", append(args, "error", err)...)
	default:
		span.SetAttributes(attribute.String("auth.rejection", kind))
		s.log.Warn(ctx, "auth operation rejected", append(args, "kind", kind)...)
	}
	span.End()
}

func validateCredentials(email, password string, register bool) error {
	emailRules := []validation.Rule{validation.Required}
	if register {
		emailRules = append(emailRules, is.Email, validation.Length(3, 254))
	}

	err := validation.Errors{
		"email":    validation.Validate(email, emailRules...),
		"password": validation.Validate(password, validation.Required, validation.Length(1, maxPasswordLen)),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}
