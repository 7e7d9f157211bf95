package verification

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

const (
	DefaultRegistrationTTL = 15 * time.Minute
	DefaultResendTTL       = 60 * time.Minute
)

// Workflow mutates the verification state of an Account. It never touches
// storage; callers persist the account afterwards.
type Workflow struct {
	gen             CodeGenerator
	clock           timex.Clock
	registrationTTL time.Duration
	resendTTL       time.Duration
}

// NewWorkflow builds a Workflow. Non-positive TTLs fall back to the defaults.
func NewWorkflow(gen CodeGenerator, clock timex.Clock, registrationTTL, resendTTL time.Duration) *Workflow {
	if registrationTTL <= 0 {
		registrationTTL = DefaultRegistrationTTL
	}
	if resendTTL <= 0 {
		resendTTL = DefaultResendTTL
	}
	return &Workflow{gen: gen, clock: clock, registrationTTL: registrationTTL, resendTTL: resendTTL}
}

func (w *Workflow) RegistrationTTL() time.Duration { return w.registrationTTL }

func (w *Workflow) ResendTTL() time.Duration { return w.resendTTL }

// Issue replaces any outstanding code with a fresh one valid for ttl and
// returns it.
func (w *Workflow) Issue(acc *models.Account, ttl time.Duration) string {
	code := w.gen.Generate()
	expires := w.clock.Now().Add(ttl)

	acc.VerificationCode = &code
	acc.VerificationExpiresAt = &expires
	return code
}

func (w *Workflow) IssueForRegistration(acc *models.Account) string {
	return w.Issue(acc, w.registrationTTL)
}

// Check validates supplied against the stored code. An expiry equal to now
// counts as expired. On success the code is cleared and the account enabled.
func (w *Workflow) Check(acc *models.Account, supplied string, now time.Time) error {
	if !acc.PendingVerification() {
		return common.ErrCodeMismatch
	}
	if !now.Before(*acc.VerificationExpiresAt) {
		return common.ErrVerificationExpired
	}
	if supplied != *acc.VerificationCode {
		return common.ErrCodeMismatch
	}

	acc.VerificationCode = nil
	acc.VerificationExpiresAt = nil
	acc.Enabled = true
	return nil
}

// Resend issues a new code with the longer resend window.
func (w *Workflow) Resend(acc *models.Account) (string, error) {
	if acc.Enabled {
		return "", common.ErrAlreadyVerified
	}
	return w.Issue(acc, w.resendTTL), nil
}
