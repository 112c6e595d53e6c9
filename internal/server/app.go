// Package server wires the KeyAuth server together: configuration, logging,
// the PostgreSQL store and its migrations, the services, and the HTTP and
// gRPC listeners with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/keyauth/internal/logging"
	"github.com/dmitrijs2005/keyauth/internal/server/auth"
	"github.com/dmitrijs2005/keyauth/internal/server/config"
	"github.com/dmitrijs2005/keyauth/internal/server/metrics"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/keyauth/internal/server/services"

	gs "github.com/dmitrijs2005/keyauth/internal/server/grpc"
	hs "github.com/dmitrijs2005/keyauth/internal/server/http"
)

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	metrics        *metrics.Metrics
	userService    *services.UserService
	licenseService *services.LicenseService
	exportService  *services.ExportService
	grpcServer     *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	secret := []byte(c.SecretKey)
	if len(secret) == 0 {
		secret = auth.NewRandomSecret()
		logger.Warn(ctx, "no JWT secret configured, using a random one; tokens will not survive a restart")
	}
	tokens := auth.NewTokenService(secret, c.AccessTokenValidityDuration)

	m := metrics.New()

	us := services.NewUserService(db, rm, auth.NewPasswordHasher(c.BcryptCost), tokens, c.AccessTokenValidityDuration)
	ls := services.NewLicenseService(db, rm, logger, m)
	es := services.NewExportService(db, rm, c, logger)

	if c.HasBootstrapAdmin() {
		admin, err := us.EnsureAdmin(ctx, c.AdminUserName, c.AdminEmail, c.AdminPassword)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("admin bootstrap error: %w", err)
		}
		logger.Info(ctx, "Admin account ready", "username", admin.UserName)
	}

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		metrics:        m,
		userService:    us,
		licenseService: ls,
		exportService:  es,
		grpcServer:     gs.NewGRPCServer(c.EndpointAddrGRPC, logger, us, ls),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpHandler() *hs.Handler {
	return hs.NewHandler(app.userService, app.licenseService, app.exportService, app.logger)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := hs.NewRouter(app.httpHandler(), hs.RouterOptions{
		RequestTimeout: app.config.RequestTimeout,
		Observer:       app.metrics,
		Metrics:        app.metrics.Handler(),
	})

	s := hs.NewServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.grpcServer.SetServing(true)
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until a termination signal arrives or either
// listener fails, then waits for both to stop and closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
