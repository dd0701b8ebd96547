// Package server is the gin HTTP surface over dispatch.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wiresense/server/internal/agent/session"
	"github.com/wiresense/server/internal/dispatch"
	"github.com/wiresense/server/internal/quota"
	logx "github.com/wiresense/server/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

type DiagnosticService interface {
	Handle(ctx context.Context, req dispatch.DiagnosticRequest) (*dispatch.DiagnosticResponse, error)
	Session(ctx context.Context, sessionID string) (*session.Session, error)
}

type WireTracingService interface {
	Handle(ctx context.Context, req dispatch.WireTracingRequest) (*dispatch.WireTracingResponse, error)
}

type UsageService interface {
	Usage(ctx context.Context, userID string) ([]quota.State, error)
}

type Config struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

// Options holds the services behind the routes.
type Options struct {
	Diagnostics DiagnosticService
	WireTracing WireTracingService
	Usage       UsageService
	Release     bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	registerRoutes(router, opts)
	return router
}

// Start serves router on port until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, router http.Handler, port int) error {
	if port <= 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Int("port", port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	logx.Info().Msg("http server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := logx.Info()
		if status >= http.StatusInternalServerError {
			ev = logx.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Str("userID", c.GetHeader(userIDHeader)).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
