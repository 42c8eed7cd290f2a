package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/flow"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/services/api/config"
	"github.com/02loveslollipop/station-telemetry/services/api/db"
)

// RangeFetcher loads a channel's telemetry over an arbitrary range.
type RangeFetcher interface {
	FetchRange(ctx context.Context, channelID int, start, end time.Time) (*telemetry.ChannelData, error)
}

// RecentFetcher loads the last entries of a channel.
type RecentFetcher interface {
	FetchRecent(ctx context.Context, channelID int, results int) (*telemetry.ChannelData, error)
}

// AlertStore lists archived alert events.
type AlertStore interface {
	ListAlertEvents(ctx context.Context, q db.AlertQuery) ([]db.AlertEvent, error)
}

// Deps are the collaborators of the server. Alerts may be nil.
type Deps struct {
	Registry *channels.Registry
	Fetcher  RangeFetcher
	Recent   RecentFetcher
	Cache    *flow.Cache
	Alerts   AlertStore
	Logger   *zap.Logger
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg      config.Config
	registry *channels.Registry
	fetcher  RangeFetcher
	recent   RecentFetcher
	cache    *flow.Cache
	alerts   AlertStore
	logger   *zap.Logger
	engine   *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(deps.Logger))
	engine.Use(corsMiddleware())

	if cfg.BearerToken != "" {
		engine.Use(bearerAuthMiddleware(cfg.BearerToken))
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	server := &Server{
		cfg:      cfg,
		registry: deps.Registry,
		fetcher:  deps.Fetcher,
		recent:   deps.Recent,
		cache:    deps.Cache,
		alerts:   deps.Alerts,
		logger:   deps.Logger,
		engine:   engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.registerV1Routes()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
