// Package api implements the HTTP status and control API.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/db"
	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/live"
)

// Controller is the connection the API reports on and drives.
type Controller interface {
	State() live.State
	Stats() map[events.EventType]uint64
	Connect(ctx context.Context, roomID string) (live.State, error)
	Disconnect()
}

// EventStore serves recorded events.
type EventStore interface {
	Recent(kind string, limit int) ([]db.Record, error)
	CountByType() (map[string]int64, error)
}

// Server is the REST API server.
type Server struct {
	cfg  config.APIConfig
	conn Controller

	// Optional dependencies
	store    EventStore
	metrics  http.Handler
	dataPath string

	httpServer *http.Server
	router     *gin.Engine
	startedAt  time.Time
}

// NewServer creates a new API server.
func NewServer(cfg config.APIConfig, conn Controller, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{
		cfg:       cfg,
		conn:      conn,
		startedAt: time.Now(),
	}
}

// SetDependencies injects the optional recorder, metrics handler and the
// data directory reported by /api/system. Any may be zero.
func (s *Server) SetDependencies(store EventStore, metrics http.Handler, dataPath string) {
	s.store = store
	s.metrics = metrics
	s.dataPath = dataPath
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Address, strconv.Itoa(s.cfg.Port))
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Addr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Router returns the gin engine, building it on first use.
func (s *Server) Router() *gin.Engine {
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(s.cfg.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
	}

	protected := router.Group("/api")
	protected.Use(RequireToken(s.cfg.Token))
	{
		protected.GET("/state", s.handleState)
		protected.GET("/stats", s.handleStats)
		protected.GET("/events/recent", s.handleRecentEvents)
		protected.GET("/system", s.handleSystem)
		protected.POST("/connect", s.handleConnect)
		protected.POST("/disconnect", s.handleDisconnect)
	}

	if s.metrics != nil && s.cfg.EnableMetrics {
		router.GET("/metrics", RequireToken(s.cfg.Token), gin.WrapH(s.metrics))
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "streamtap API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
