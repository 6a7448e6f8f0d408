// Package server exposes the campaign pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/lock"
	"github.com/mohammad-safakhou/campaigner/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	// AssetsDir is served under PublicBaseURL when the base URL is a path.
	AssetsDir     string
	PublicBaseURL string
	// Metrics serves /metrics; nil disables the route.
	Metrics http.Handler
	// Agents serves the single-purpose agent routes; nil disables them.
	Agents AgentService
	Logger *zap.Logger
}

// New builds the echo instance with every route registered.
func New(svc Service, opts Options) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
	if opts.AssetsDir != "" && strings.HasPrefix(opts.PublicBaseURL, "/") {
		e.Static(strings.TrimRight(opts.PublicBaseURL, "/"), opts.AssetsDir)
	}

	h := &CampaignHandler{Service: svc, Logger: logger}
	api := e.Group("/api")
	h.Register(api)
	if opts.Agents != nil {
		ah := &AgentHandler{Service: opts.Agents, Logger: logger}
		ah.Register(api)
	}
	return e
}

// Run serves e on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string, readTimeout, writeTimeout time.Duration) error {
	e.Server.ReadTimeout = readTimeout
	e.Server.WriteTimeout = writeTimeout

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// ErrorHandler writes every error as {"error": message} with a status
// derived from the error's kind.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, msg := classify(err)
		req := c.Request()
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}
}

func classify(err error) (int, string) {
	var (
		he *echo.HTTPError
		se *campaign.SchemaError
		ve *campaign.ValidationError
	)
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	case errors.As(err, &se), errors.As(err, &ve):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, campaign.ErrAssetNotFound):
		return http.StatusNotFound, campaign.ErrAssetNotFound.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, store.ErrNotFound.Error()
	case errors.Is(err, lock.ErrHeld):
		return http.StatusConflict, lock.ErrHeld.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
