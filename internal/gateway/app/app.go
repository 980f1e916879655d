package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/connector"
	"github.com/psd2hub/obgate/internal/gateway/connector/sandbox"
	"github.com/psd2hub/obgate/internal/gateway/domain"
	httpapi "github.com/psd2hub/obgate/internal/gateway/http"
	"github.com/psd2hub/obgate/internal/gateway/service"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/internal/gateway/store/drivers/sqlite"
	"github.com/psd2hub/obgate/pkg/cryptox"
	"github.com/psd2hub/obgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	connector connector.Connector

	// Services
	consentService       *service.ConsentService
	paymentService       *service.PaymentService
	authorisationService *service.AuthorisationService
	dispatcher           *service.Dispatcher
	redirectService      *service.RedirectService
	housekeepingService  *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "obgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initConnector(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initConnector builds the ASPSP connector. Only the bundled sandbox is
// wired for now; a real core banking adapter slots in behind the same
// interface.
func (app *Application) initConnector() error {
	sb := sandbox.New()
	sb.AutoConfirmDecoupled = app.cfg.SandboxAutoConfirm

	if app.cfg.SandboxPsuID != "" {
		methods := []domain.ScaMethod{
			{ID: "totp", Type: "PHOTO_OTP", Name: "Authenticator app"},
			{ID: "push", Type: "PUSH_OTP", Name: "Banking app confirmation", Decoupled: true},
		}
		if err := sb.AddPsu(app.cfg.SandboxPsuID, app.cfg.SandboxPsuPassword, app.cfg.SandboxTotpSecret, methods); err != nil {
			return fmt.Errorf("failed to register sandbox psu: %w", err)
		}
		app.logger.Info("sandbox psu registered", "psu_id", app.cfg.SandboxPsuID)
	} else {
		app.logger.Warn("no sandbox psu configured; every authentication will fail")
	}

	app.connector = sb
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	profile := app.cfg.Profile()

	expiry := &service.ConfirmationExpirationService{
		Store:  app.db,
		Window: app.cfg.ConfirmationWindow,
	}
	resolvers := service.NewResolverSet(app.db, expiry, profile)
	closing := &service.ClosingService{Resolvers: resolvers}
	selector := &service.ApproachSelector{Profile: profile}

	signingKey := app.cfg.RedirectSigningKey
	if signingKey == "" {
		// Per-process key: links stop working across restarts, which is
		// acceptable for anything short of a production deployment.
		signingKey = cryptox.MustGenerateToken(cryptox.TokenSize256)
		app.logger.Warn("no redirect signing key configured, generated an ephemeral one")
	}

	app.redirectService = &service.RedirectService{
		Store:      app.db,
		Resolvers:  resolvers,
		Closing:    closing,
		SigningKey: []byte(signingKey),
		BaseURL:    app.cfg.RedirectBaseURL,
	}

	app.consentService = &service.ConsentService{Store: app.db, Expiry: expiry}
	app.paymentService = &service.PaymentService{Store: app.db, Expiry: expiry}

	app.authorisationService = &service.AuthorisationService{
		Store:     app.db,
		Resolvers: resolvers,
		Closing:   closing,
		Selector:  selector,
		Redirect:  app.redirectService,
		Profile:   profile,
	}

	app.dispatcher = service.NewDispatcher(app.db, app.connector, resolvers, closing, selector, profile)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.HousekeepingGrace,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger, BuildVersion)

	// Wire services to router
	router.ConsentService = app.consentService
	router.PaymentService = app.paymentService
	router.AuthorisationService = app.authorisationService
	router.Dispatcher = app.dispatcher
	router.RedirectService = app.redirectService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
