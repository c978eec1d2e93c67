// Package rest exposes the authentication service over HTTP using fiber.
package rest

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// UserService is the account surface used by the handlers.
type UserService interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*services.AccessToken, error)
}

// SessionService verifies and revokes bearer tokens.
type SessionService interface {
	Verify(ctx context.Context, authorizationHeader string) (*services.Session, error)
	Logout(ctx context.Context, authorizationHeader string) error
}

type HTTPServer struct {
	address  string
	users    UserService
	sessions SessionService
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   logging.Logger
}

// NewHTTPServer wires the handlers. m and g may be nil, in which case
// requests are not counted and /metrics is not mounted.
func NewHTTPServer(a string, l logging.Logger, us UserService, ss SessionService, m *metrics.Metrics, g prometheus.Gatherer) *HTTPServer {
	if l == nil {
		l = logging.Nop()
	}
	return &HTTPServer{
		address:  a,
		users:    us,
		sessions: ss,
		metrics:  m,
		gatherer: g,
		logger:   l.With("module", "http_server"),
	}
}

// App builds the fiber application with all routes registered.
func (s *HTTPServer) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gophauth",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          errorHandler,
	})

	app.Use(s.countRequests)

	app.Get("/", s.root)
	app.Post("/signup", s.signup)
	app.Post("/create-user", s.signup)
	app.Post("/login", s.login)
	app.Post("/logout", s.logout)

	secure := app.Group("/secure", s.requireSession)
	secure.Get("/data", s.secureData)

	if s.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return app
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	app := s.App()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := app.Listen(s.address); err != nil {
		return err
	}

	return nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgInternal

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
