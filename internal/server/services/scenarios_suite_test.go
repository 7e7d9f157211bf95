package services_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/verification"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Scenario Suite")
}

// outbox records the last code mailed to each address.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) SendVerificationCode(_ context.Context, v notify.Verification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[v.Email] = v.Code
	return nil
}

func (o *outbox) last(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

var _ = Describe("AuthService", func() {
	var (
		ctx   context.Context
		clock *timex.ManualClock
		repos *repomanager.MemoryRepositoryManager
		mail  *outbox
		codec *auth.Codec
		svc   *services.AuthService
		start time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		clock = timex.NewManualClock(start)
		repos = repomanager.NewMemoryRepositoryManager()
		mail = &outbox{codes: map[string]string{}}

		var err error
		codec, err = auth.NewCodec([]byte("scenario-secret"), 15*time.Minute, 7*24*time.Hour, clock)
		Expect(err).NotTo(HaveOccurred())

		svc = services.NewAuthService(services.AuthDeps{
			Transactor: dbx.NewMemoryTransactor(),
			Repos:      repos,
			Codec:      codec,
			Workflow:   verification.NewWorkflow(verification.NewRandGenerator(7, 11), clock, 15*time.Minute, 60*time.Minute),
			Hasher:     auth.NewBcryptHasher(bcrypt.MinCost),
			Sender:     mail,
			Clock:      clock,
		})
	})

	account := func(id string) *models.Account {
		acc, err := repos.Accounts(nil).FindByID(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		return acc
	}

	activeCount := func(id string, p models.TokenPurpose) int {
		n, err := repos.Tokens(nil).CountActive(ctx, id, p)
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	Describe("verification codes", func() {
		It("are six digits in [100000, 999999]", func() {
			gen := verification.NewRandGenerator(1, 1)
			for i := 0; i < 2000; i++ {
				code := gen.Generate()
				Expect(code).To(HaveLen(6))
				n, err := strconv.Atoi(code)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeNumerically(">=", 100000))
				Expect(n).To(BeNumerically("<=", 999999))
			}
		})
	})

	Describe("registration and verification", func() {
		var id string

		BeforeEach(func() {
			res, err := svc.Register(ctx, "a@x.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			id = res.AccountID
		})

		It("creates a disabled account with a 15 minute code", func() {
			acc := account(id)
			Expect(acc.Enabled).To(BeFalse())
			Expect(*acc.VerificationCode).To(Equal(mail.last("a@x.com")))
			Expect(*acc.VerificationExpiresAt).To(Equal(start.Add(15 * time.Minute)))
		})

		It("rejects the correct code once now reaches the expiry", func() {
			clock.Advance(15 * time.Minute)
			_, err := svc.Verify(ctx, id, mail.last("a@x.com"))
			Expect(err).To(MatchError(common.ErrVerificationExpired))
		})

		It("enables the account and consumes the code", func() {
			code := mail.last("a@x.com")
			clock.Advance(14 * time.Minute)

			_, err := svc.Verify(ctx, id, code)
			Expect(err).NotTo(HaveOccurred())

			acc := account(id)
			Expect(acc.Enabled).To(BeTrue())
			Expect(acc.VerificationCode).To(BeNil())
			Expect(acc.VerificationExpiresAt).To(BeNil())

			_, err = svc.Verify(ctx, id, code)
			Expect(err).To(HaveOccurred())
		})

		It("accepts only the resent code inside the longer resend window", func() {
			original := mail.last("a@x.com")

			clock.Advance(5 * time.Minute)
			Expect(svc.ResendVerification(ctx, id)).To(Succeed())
			resent := mail.last("a@x.com")
			Expect(*account(id).VerificationExpiresAt).To(Equal(start.Add(65 * time.Minute)))

			clock.Advance(20 * time.Minute) // past the original 15m window
			if resent != original {
				_, err := svc.Verify(ctx, id, original)
				Expect(err).To(MatchError(common.ErrCodeMismatch))
			}
			_, err := svc.Verify(ctx, id, resent)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.ResendVerification(ctx, id)).To(MatchError(common.ErrAlreadyVerified))
		})

		It("opens a session with one active token per purpose", func() {
			_, err := svc.Verify(ctx, id, mail.last("a@x.com"))
			Expect(err).NotTo(HaveOccurred())
			Expect(activeCount(id, models.PurposeAccess)).To(Equal(1))
			Expect(activeCount(id, models.PurposeRefresh)).To(Equal(1))
		})
	})

	Describe("sessions", func() {
		var id string

		BeforeEach(func() {
			res, err := svc.Register(ctx, "a@x.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			id = res.AccountID
			_, err = svc.Verify(ctx, id, mail.last("a@x.com"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rotates on every login", func() {
			first, err := svc.Authenticate(ctx, "a@x.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			second, err := svc.Authenticate(ctx, "a@x.com", "pw")
			Expect(err).NotTo(HaveOccurred())

			_, err = codec.Decode(first.AccessToken)
			Expect(err).NotTo(HaveOccurred(), "old access token still decodes")

			_, err = svc.Refresh(ctx, first.RefreshToken)
			Expect(err).To(MatchError(common.ErrInvalidRefreshToken))

			_, err = svc.Refresh(ctx, second.RefreshToken)
			Expect(err).NotTo(HaveOccurred())

			Expect(activeCount(id, models.PurposeAccess)).To(Equal(1))
			Expect(activeCount(id, models.PurposeRefresh)).To(Equal(1))
		})

		It("refuses a refresh token after logout", func() {
			sess, err := svc.Authenticate(ctx, "a@x.com", "pw")
			Expect(err).NotTo(HaveOccurred())

			svc.Logout(ctx, sess.RefreshToken)

			_, err = svc.Refresh(ctx, sess.RefreshToken)
			Expect(err).To(MatchError(common.ErrInvalidRefreshToken))
		})

		It("tells expired tokens from garbage", func() {
			sess, err := svc.Authenticate(ctx, "a@x.com", "pw")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Refresh(ctx, sess.RefreshToken+"x")
			Expect(err).To(MatchError(common.ErrMalformedToken))

			clock.Advance(8 * 24 * time.Hour)
			_, err = svc.Refresh(ctx, sess.RefreshToken)
			Expect(err).To(MatchError(common.ErrTokenExpired))
		})
	})
})
