// Package server wires the gophauth components together and runs the gRPC
// and HTTP transports until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/verification"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/prometheus/client_golang/prometheus"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	registry    *prometheus.Registry
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	st, err := openStorage(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	clock := timex.SystemClock{}

	codec, err := auth.NewCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, clock)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("token codec init error: %w", err)
	}

	sender, err := newSender(ctx, c, logger)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("mail sender init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.RegisterMetrics(registry)

	svc := services.NewAuthService(services.AuthDeps{
		Transactor: st.tx,
		Repos:      st.repos,
		Codec:      codec,
		Workflow: verification.NewWorkflow(verification.NewSystemGenerator(), clock,
			c.RegistrationCodeValidityDuration, c.ResendCodeValidityDuration),
		Hasher: newHasher(c),
		Sender: sender,
		Clock:  clock,
		Log:    logger.With("module", "auth_service"),
	})

	return &App{config: c, logger: logger, db: st.db, authService: svc, registry: registry}, nil
}

func newHasher(c *config.Config) auth.PasswordHasher {
	if c.PasswordHasher == config.HasherArgon2id {
		return auth.NewArgon2idHasher()
	}
	return auth.NewBcryptHasher(c.BcryptCost)
}

func newSender(ctx context.Context, c *config.Config, logger logging.Logger) (notify.Sender, error) {
	renderer := notify.NewRenderer(c.ClientURL)

	if c.MailBackend != config.MailSES {
		return notify.NewLogSender(logger.With("module", "mail"), renderer), nil
	}

	client, err := notify.NewSESClient(ctx, notify.SESOptions{
		Region:          c.SESRegion,
		Endpoint:        c.SESEndpoint,
		AccessKeyID:     c.SESAccessKeyID,
		SecretAccessKey: c.SESSecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return notify.NewSESSender(client, c.MailFrom, renderer), nil
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.authService, app.registry)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until a termination signal arrives or one of
// them fails.
func (app *App) Run(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend, "mail", app.config.MailBackend)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
	}
	app.logger.Info(context.Background(), "App stopped")
}
