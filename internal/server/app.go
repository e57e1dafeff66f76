// Package server wires the identity and payment card services together and
// runs the HTTP and gRPC listeners until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/cryptox"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/auth"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/config"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/httpapi"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/metrics"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/notify"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/repositories/repomanager"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/services"

	gs "github.com/ttn64681/SWE-Final-Proj/internal/server/grpc"
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   runner
	grpc   runner
}

// NewApp opens the database, applies migrations and builds every
// component from cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, cfg, db, repomanager.NewPostgresRepositoryManager(), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, cfg *config.Config, db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) (*App, error) {
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	hasher, err := cryptox.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	key, err := cfg.CardKey()
	if err != nil {
		return nil, err
	}
	cipher, err := cryptox.NewCardCipher(key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg)
	if err != nil {
		return nil, err
	}

	var sink notify.Sink
	if cfg.SMTPHost != "" {
		sink = notify.NewSMTPSink(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logger.Warn(ctx, "SMTP host not configured, emails are logged instead of sent")
		sink = notify.NewLogSink(logger)
	}
	notifier := notify.NewNotifier(sink, cfg.FrontendURL, logger)

	accounts := services.NewAccountService(db, rm, hasher, notifier, logger)
	ephemeral := services.NewEphemeralTokenService(db, rm, hasher, notifier, cfg, logger)
	sessions := services.NewSessionService(accounts, tokens, logger)
	vault := services.NewVaultService(db, rm, cipher, cfg.MaxCardsPerAccount, logger)

	if cfg.AdminEmail != "" {
		if _, err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("admin provisioning: %w", err)
		}
	}

	m := metrics.New()
	authenticator := authn.New(tokens, m, logger)

	api := httpapi.New(httpapi.Deps{
		Accounts:      accounts,
		Tokens:        ephemeral,
		Sessions:      sessions,
		Vault:         vault,
		Authenticator: authenticator,
		Metrics:       m,
		DB:            db,
		Logger:        logger,
	})

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		http:   httpapi.NewServer(cfg.HTTPAddr, api.Routes(), logger),
		grpc:   gs.NewGRPCServer(cfg.GRPCAddr, authenticator, logger, gs.WithPaymentCards(vault)),
	}, nil
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM/SIGQUIT arrives or a
// listener fails, then closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "http", app.config.HTTPAddr, "grpc", app.config.GRPCAddr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error { return app.grpc.Run(ctx) })

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		app.logger.Error(context.Background(), "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
