package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/fleet-notify/api/controllers"
	"github.com/moyoez/fleet-notify/api/middlewares"
	"github.com/moyoez/fleet-notify/api/notifyhub"
	"github.com/moyoez/fleet-notify/tool"
)

// Service is the notification session as seen by the gateway.
type Service interface {
	controllers.NotificationService
}

// Server is the local presentation gateway: a small HTTP API plus a websocket
// that mirrors the notification store.
type Server struct {
	port   int
	svc    Service
	hub    *notifyhub.Hub
	ping   controllers.PingFunc
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

// NewServer creates the gateway. hub must already be subscribed to the session.
func NewServer(port int, svc Service, hub *notifyhub.Hub) *Server {
	if hub == nil {
		hub = notifyhub.New()
	}
	return &Server{
		port: port,
		svc:  svc,
		hub:  hub,
	}
}

// SetPingFunc replaces the ICMP probe used by the diagnostics endpoint.
func (s *Server) SetPingFunc(ping controllers.PingFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ping = ping
}

// Handler returns the routed engine, building it on first use.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.LocalCORS())

	ctrl := controllers.NewNotificationController(s.svc)

	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal, middlewares.OnlyAllowLocalOrigin)
	{
		self.GET("/notifications", ctrl.HandleList)                    // Snapshot with presentation hints
		self.POST("/notifications/read-all", ctrl.HandleReadAll)       // Mark everything read
		self.POST("/notifications/refresh", ctrl.HandleRefresh)        // Reload recent notifications
		self.POST("/notifications/:id/open", ctrl.HandleOpen)          // Mark read and return the navigation target
		self.POST("/notifications/:id/read", ctrl.HandleRead)          // Mark a single notification read
		self.GET("/notifications/:id/qrcode", ctrl.HandleQRCode)       // QR code PNG of the target page
		self.GET("/status", ctrl.HandleStatus)                         // Connection state and frame counters
		self.POST("/reconnect", ctrl.HandleReconnect)                  // Manual recovery after the channel gave up
		self.GET("/diagnostics/ping", ctrl.HandlePing(s.ping))         // ICMP reachability of the fleet server
		self.GET("/notify-ws", notifyhub.HandleNotifyWS(s.hub, s.svc)) // Live snapshot and connection frames
	}
	return engine
}

// Start starts the HTTP server on localhost and blocks until it stops.
func (s *Server) Start() error {
	handler := s.Handler()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: handler,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting gateway on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
