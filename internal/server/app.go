// Package server initializes and runs the authentication service.
// It selects storage backends from configuration, runs migrations, starts
// the HTTP server and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/rest"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// openDB and newRepoManager are seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	httpServer *rest.HTTPServer
	closers    []func() error
}

// NewApp builds every component named by c. Storage connections are opened
// and checked here so that misconfiguration fails at startup.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	hasher, err := cryptox.NewHasher(c.PasswordHasher)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewTokenCodec([]byte(c.SecretKey), c.SigningAlgorithm)
	if err != nil {
		return nil, err
	}

	userRepo, tokenRepo, err := app.initStorage(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	us, err := services.NewUserService(userRepo, tokenRepo, hasher, codec, c.TokenTTLMinutes(), logger)
	if err != nil {
		app.close()
		return nil, err
	}
	ss := services.NewSessionService(tokenRepo, codec, m, logger)

	app.httpServer = rest.NewHTTPServer(c.EndpointAddrHTTP, logger, us, ss, m, reg)

	return app, nil
}

func (app *App) initStorage(ctx context.Context) (users.Repository, tokens.Repository, error) {
	c := app.config

	var db *sql.DB
	var rm repomanager.RepositoryManager
	if c.UserStore == config.StorePostgres || c.TokenStore == config.StorePostgres {
		var err error
		db, err = openDB(c.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("db init error: %w", err)
		}

		rm = newRepoManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("migrations error: %w", err)
		}
	}

	var userRepo users.Repository
	switch c.UserStore {
	case config.StorePostgres:
		userRepo = rm.Users(db)
	default:
		userRepo = users.NewInMemoryRepository()
	}

	var tokenRepo tokens.Repository
	switch c.TokenStore {
	case config.StorePostgres:
		tokenRepo = rm.Tokens(db)
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.closers = append(app.closers, rdb.Close)

		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis init error: %w", err)
		}
		tokenRepo = tokens.NewRedisRepository(rdb, c.RedisKeyPrefix)
	default:
		tokenRepo = tokens.NewInMemoryRepository()
	}

	app.logger.Info(ctx, "storage ready", "user_store", c.UserStore, "token_store", c.TokenStore)
	return userRepo, tokenRepo, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	err := app.httpServer.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, err.Error())
	}
	cancelFunc()
	return err
}

// Run serves until ctx is canceled or a termination signal arrives, then
// releases storage connections.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	var runErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	closeErr := app.close()
	app.logger.Info(ctx, "App stopped")

	return errors.Join(runErr, closeErr)
}

func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
