package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/dispatch"
	"github.com/phishguard/phishguard/internal/settings"
	"github.com/phishguard/phishguard/internal/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the control-plane HTTP boundary between the core and the
// presentation layers: the navigation-event ingress for the browser shim
// and the message endpoint for popup and dashboard.
type Server struct {
	gate       *core.NavigationGate
	classifier core.Classifier
	cache      core.ResultCache
	allowList  core.AllowList
	settings   *settings.Manager
	stats      *stats.Collector
	store      core.Store
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger

	listenAddr string
	httpServer *http.Server
}

// New creates a new control-plane server
func New(
	gate *core.NavigationGate,
	classifier core.Classifier,
	cache core.ResultCache,
	allowList core.AllowList,
	settingsMgr *settings.Manager,
	collector *stats.Collector,
	store core.Store,
	dispatcher *dispatch.Dispatcher,
	listenAddr string,
	logger *zap.Logger,
) *Server {
	return &Server{
		gate:       gate,
		classifier: classifier,
		cache:      cache,
		allowList:  allowList,
		settings:   settingsMgr,
		stats:      collector,
		store:      store,
		dispatcher: dispatcher,
		listenAddr: listenAddr,
		logger:     logger,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	{
		v1.POST("/navigation/before", s.handleBeforeNavigate)
		v1.POST("/navigation/complete", s.handleNavigationComplete)
		v1.GET("/contexts/:id/badge", s.handleContextBadge)
		v1.POST("/message", s.handleMessage)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Start begins serving in the background
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.Router(),
	}

	s.logger.Info("Control server starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleBeforeNavigate is the blocking pass, invoked before a navigation
// commits
func (s *Server) handleBeforeNavigate(c *gin.Context) {
	var ev core.NavigationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	verdict := s.gate.EvaluateBeforeNavigate(c.Request.Context(), ev)
	c.JSON(http.StatusOK, verdict)
}

// handleNavigationComplete is the badge-only pass, invoked after the page
// finishes loading
func (s *Server) handleNavigationComplete(c *gin.Context) {
	var ev core.NavigationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	badge, result := s.gate.EvaluateOnLoad(c.Request.Context(), ev)
	c.JSON(http.StatusOK, gin.H{"badge": badge, "result": result})
}

// handleContextBadge reports the indicator for a context. When the caller
// supplies the context's current URL and the cache still holds a fresh
// result for it, the badge is refreshed from cache first.
func (s *Server) handleContextBadge(c *gin.Context) {
	contextID := c.Param("id")

	if rawURL := c.Query("url"); rawURL != "" {
		if result, ok := s.cache.Get(rawURL); ok {
			s.dispatcher.UpdateBadge(contextID, result)
		}
	}

	c.JSON(http.StatusOK, gin.H{"badge": s.dispatcher.Badge(contextID)})
}

// handleMessage decodes one action-keyed message and dispatches it
func (s *Server) handleMessage(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	resp, err := s.dispatchMessage(c.Request.Context(), msg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownAction) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
