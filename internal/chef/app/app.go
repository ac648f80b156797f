package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	httpapi "github.com/aussiebroadwan/aichef/internal/chef/http"
	"github.com/aussiebroadwan/aichef/internal/chef/service"
	"github.com/aussiebroadwan/aichef/internal/chef/store"
	"github.com/aussiebroadwan/aichef/internal/chef/store/drivers/sqlite"
	"github.com/aussiebroadwan/aichef/pkg/apiclient"
	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/cryptox"
	"github.com/aussiebroadwan/aichef/pkg/hostapp"
	"github.com/aussiebroadwan/aichef/pkg/metricsx"
	"github.com/aussiebroadwan/aichef/pkg/session"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the session service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	registry *prometheus.Registry
	metrics  *metricsx.Metrics
	sdk      *authsdk.SDKClient

	// Services
	controller          *session.Controller
	api                 *apiclient.Client // nil when no business API is configured
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "aichef",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
	}

	// Outgoing calls carry W3C trace context
	otel.SetTextMapPropagator(propagation.TraceContext{})

	app.initMetrics()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Session exposes the controller for one-shot use by the CLI.
func (app *Application) Session() *session.Controller { return app.controller }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	// Settle the session in the background so probes answer straight away
	go app.controller.Start(context.Background())

	app.logger.Info("session service starting", "port", app.cfg.Port, "version", BuildVersion)

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
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// Close stops the renewal worker and releases the database. Shutdown calls
// it; one-shot commands that never served call it directly.
func (app *Application) Close() error {
	app.controller.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

func (app *Application) initMetrics() {
	app.registry, app.metrics = metricsx.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initServices wires the identity adapters, the session controller and the
// request layer.
func (app *Application) initServices() error {
	masterKey, ephemeral, err := cryptox.LoadMasterKey(app.cfg.MasterKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}
	if ephemeral {
		app.logger.Warn("using an ephemeral master key, logins in flight will not survive a restart")
	}

	sealer, err := cryptox.NewSealer(masterKey, "pending-login")
	if err != nil {
		return fmt.Errorf("failed to create sealer: %w", err)
	}

	app.sdk = authsdk.NewSDKClient(app.cfg.KeycloakURL, app.cfg.KeycloakRealm)
	app.sdk.HTTPClient.Transport = otelhttp.NewTransport(http.DefaultTransport)

	provider := sso.NewProvider(sso.Config{
		SDK:                   app.sdk,
		ClientID:              app.cfg.ClientID,
		ClientSecret:          app.cfg.ClientSecret,
		RedirectURL:           app.cfg.RedirectURL,
		PostLogoutRedirectURL: app.cfg.PostLogoutRedirectURL,
		Scopes:                app.cfg.Scopes,
		Pending:               store.NewPendingStoreAdapter(app.db, sealer),
		PendingTTL:            app.cfg.PendingLoginTTL,
	})

	host := hostapp.NewAdapter(
		hostapp.EnvRuntime{Var: app.cfg.HostInitDataEnv},
		app.sdk,
		app.cfg.ClientID,
	)

	app.controller = session.New(session.Config{
		SSO:                provider,
		Host:               host,
		CallbackURL:        app.cfg.CallbackURL,
		RenewalInterval:    app.cfg.RenewalInterval,
		UnverifiedFallback: app.cfg.UnverifiedFallback,
		Logger:             app.logger,
		Metrics:            app.metrics,
	})

	if app.cfg.APIBaseURL != "" {
		var limiter *rate.Limiter
		if app.cfg.APIRateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(app.cfg.APIRateLimit), max(1, int(app.cfg.APIRateLimit)))
		}

		app.api = apiclient.New(apiclient.Config{
			BaseURL:     app.cfg.APIBaseURL,
			Prefix:      app.cfg.APIPrefix,
			Session:     app.controller,
			Credentials: app.controller.Credentials(),
			HTTPClient: &http.Client{
				Timeout:   app.cfg.APITimeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Limiter: limiter,
			Logger:  app.logger,
			Metrics: app.metrics,
		})
	} else {
		app.logger.Warn("API_BASE_URL not set, business API proxy disabled")
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.logger)

	// Wire services to router
	router.Session = app.controller
	if app.api != nil {
		router.API = app.api
	}
	router.Checks["database"] = app.db
	router.Checks["identity_provider"] = app.sdk
	router.Gatherer = app.registry
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           otelhttp.NewHandler(router, "aichef"),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
