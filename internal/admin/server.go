// Package admin owns the HTTP facade operators use to target a connected
// point: list identities, read configuration, push configuration changes.
// It consumes the core only through outbound calls against live sessions.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/voltbridge/voltbridge/internal/observability"
	"github.com/voltbridge/voltbridge/internal/session"
)

var ErrAdminAddrRequired = errors.New("admin: listen address required")

// Directory is the read side of the peer registry the facade targets
// devices through.
type Directory interface {
	Lookup(identity string) (*session.Session, bool)
	Identities() []string
}

// Config configures the admin facade.
type Config struct {
	Addr        string
	CallTimeout time.Duration
	CORSOrigins []string
	// RateLimit caps admin requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

type Server struct {
	cfg       Config
	directory Directory
	log       zerolog.Logger
	engine    *gin.Engine
}

func NewServer(cfg Config, directory Directory, log zerolog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, ErrAdminAddrRequired
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(log))
	engine.Use(observability.RequestMetricsMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
			if burst < 1 {
				burst = 1
			}
		}
		engine.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	s := &Server{cfg: cfg, directory: directory, log: log, engine: engine}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the facade for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("admin facade listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func rateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
