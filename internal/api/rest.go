// Package api provides the REST API and WebSocket server for Melodarr.
// It exposes library roots and blacklist management, scan control, track
// and artist browsing, notification channels and real-time updates.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Melodarr/internal/auth"
	"github.com/mescon/Melodarr/internal/db"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/integration"
	"github.com/mescon/Melodarr/internal/logger"
	"github.com/mescon/Melodarr/internal/metrics"
	"github.com/mescon/Melodarr/internal/notifier"
	"github.com/mescon/Melodarr/internal/services"
)

// settingAPIKeyHash is the settings key holding the bcrypt hash of the
// API key. When unset, the API runs without authentication.
const settingAPIKeyHash = "api_key_hash"

type RESTServer struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *db.Repository
	eventBus   *eventbus.EventBus
	pipeline   *ingest.Pipeline
	scheduler  *services.SchedulerService
	notifier   *notifier.Notifier
	enrichment *integration.MusicBrainzClient
	metrics    *metrics.MetricsService
	profileID  string
	hub        *WebSocketHub
	startTime  time.Time
}

// ServerDeps contains all dependencies required for the REST server.
// Scheduler, Notifier and Enrichment may be nil; the matching endpoints
// respond 503 when their service is absent.
type ServerDeps struct {
	Repo       *db.Repository
	EventBus   *eventbus.EventBus
	Pipeline   *ingest.Pipeline
	Scheduler  *services.SchedulerService
	Notifier   *notifier.Notifier
	Enrichment *integration.MusicBrainzClient
	Metrics    *metrics.MetricsService
	ProfileID  string
}

func NewRESTServer(deps ServerDeps) *RESTServer {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Request ID middleware for correlation
	r.Use(func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = fmt.Sprintf("%d-%d", time.Now().UnixNano(), c.Request.ContentLength)
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	})

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqID := c.GetString("request_id")
		logger.Errorf("[PANIC RECOVERY] request_id=%s path=%s method=%s error=%v",
			reqID, c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": reqID,
		})
	}))

	// CORS middleware, configurable via MELODARR_CORS_ORIGIN. Unset means
	// same-origin only (no CORS headers emitted).
	corsOrigins := os.Getenv("MELODARR_CORS_ORIGIN")
	allowedOrigins := make(map[string]bool)
	if corsOrigins != "" {
		for _, origin := range strings.Split(corsOrigins, ",") {
			allowedOrigins[strings.TrimSpace(origin)] = true
		}
	}

	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if corsOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	s := &RESTServer{
		router:     r,
		repo:       deps.Repo,
		eventBus:   deps.EventBus,
		pipeline:   deps.Pipeline,
		scheduler:  deps.Scheduler,
		notifier:   deps.Notifier,
		enrichment: deps.Enrichment,
		metrics:    deps.Metrics,
		profileID:  deps.ProfileID,
		hub:        NewWebSocketHub(deps.EventBus),
		startTime:  time.Now(),
	}

	s.setupRoutes()

	return s
}

// routeNotificationByID is the route path for notification operations by ID
const routeNotificationByID = "/notifications/:id"

func (s *RESTServer) setupRoutes() {
	// Prometheus scrape endpoint at root level, outside authentication
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		// Public endpoints
		api.GET("/health", s.handleHealth)
		api.POST("/auth/setup", s.handleAuthSetup)
		api.GET("/auth/status", s.handleAuthStatus)

		protected := api.Group("")
		protected.Use(s.authMiddleware())
		{
			protected.POST("/auth/regenerate", s.regenerateAPIKey)

			// Library configuration
			protected.GET("/library/roots", s.getLibraryRoots)
			protected.POST("/library/roots", s.createLibraryRoot)
			protected.DELETE("/library/roots/:id", s.deleteLibraryRoot)
			protected.GET("/library/blacklist", s.getBlacklist)
			protected.POST("/library/blacklist", s.createBlacklistEntry)
			protected.DELETE("/library/blacklist/:id", s.deleteBlacklistEntry)

			// Scans
			protected.GET("/scans", s.getScans)
			protected.GET("/scans/active", s.getActiveScan)
			protected.POST("/scans", s.triggerScan)
			protected.POST("/watcher/start", s.startWatcher)
			protected.POST("/watcher/stop", s.stopWatcher)

			// Library browsing
			protected.GET("/tracks", s.getTracks)
			protected.GET("/artists", s.getArtists)

			// Stats
			protected.GET("/stats", s.getStats)

			// Notifications
			protected.GET("/notifications", s.getNotifications)
			protected.POST("/notifications", s.createNotification)
			protected.PUT(routeNotificationByID, s.updateNotification)
			protected.DELETE(routeNotificationByID, s.deleteNotification)
			protected.POST("/notifications/test", s.testNotification)
			protected.GET("/notifications/events", s.getNotificationEvents)

			// Real-time updates
			protected.GET("/ws", func(c *gin.Context) {
				s.hub.HandleConnection(c)
			})
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})
}

func (s *RESTServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *RESTServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *RESTServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash, err := s.repo.GetSetting(settingAPIKeyHash)
		if err != nil {
			respondAuthError(c, err)
			c.Abort()
			return
		}

		// No key configured: the API runs open. Setup creates one.
		if hash == "" {
			c.Next()
			return
		}

		token := c.GetHeader("X-API-Key")
		if token == "" {
			token = c.GetHeader("Authorization")
			if len(token) > 7 && token[:7] == "Bearer " {
				token = token[7:]
			}
		}
		// Query parameter fallback for WebSocket clients
		if token == "" {
			token = c.Query("apikey")
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
			c.Abort()
			return
		}

		if !auth.CheckKey(token, hash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
