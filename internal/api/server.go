// Package api serves the expense screen over HTTP for the mobile clients.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gitlab.com/yelinaung/expense-share/internal/config"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/push"
	"gitlab.com/yelinaung/expense-share/internal/screen"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server is the HTTP front-end.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	cfg         *config.Config
	store       gateway.Gateway
	broadcaster screen.Broadcaster
	registrar   *push.Registrar

	// keepAlive is the interval between SSE comments on an idle stream.
	keepAlive time.Duration
}

// New creates the server and registers routes. broadcaster may be nil.
func New(cfg *config.Config, store gateway.Gateway, broadcaster screen.Broadcaster) *Server {
	s := &Server{
		echo:        echo.New(),
		cfg:         cfg,
		store:       store,
		broadcaster: broadcaster,
		registrar:   push.NewRegistrar(store),
		keepAlive:   25 * time.Second,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(requestLogger())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/health", s.health)
	s.echo.GET("/people", s.listPeople)
	s.echo.GET("/expenses", s.listExpenses)
	s.echo.GET("/expenses/stream", s.streamExpenses)
	s.echo.POST("/expenses", s.createExpense)
	s.echo.PATCH("/expenses/:id", s.updateExpense)
	s.echo.DELETE("/expenses/:id", s.deleteExpense)
	s.echo.POST("/push-tokens", s.registerPushToken)

	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(s.echo, "api"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler without tracing, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Open streams
// end when their request context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request through zerolog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Log.Info()
			if v.Error != nil {
				event = logger.Log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
