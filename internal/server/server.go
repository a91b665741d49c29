// Package server exposes the registry over two surfaces: a REST API for the
// admin console and WebSocket channels for live traffic on both sides.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"gendesk/internal/autoreply"
	"gendesk/internal/hub"
	"gendesk/internal/notify"
	"gendesk/internal/registry"
)

type Server struct {
	echo      *echo.Echo
	registry  *registry.Registry
	hub       *hub.Hub
	emitter   *notify.Emitter
	responder *autoreply.Responder
	upgrader  websocket.Upgrader
}

func New(reg *registry.Registry, h *hub.Hub, em *notify.Emitter, resp *autoreply.Responder) *Server {
	s := &Server{
		echo:      echo.New(),
		registry:  reg,
		hub:       h,
		emitter:   em,
		responder: resp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	h.OnMessage = s.handleFrame
	h.OnDisconnect = s.clientGone
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/messages", s.sendMessage)
	api.POST("/sessions/:id/read", s.markAsRead)
	api.POST("/sessions/:id/assign", s.assignSession)
	api.PUT("/sessions/:id/priority", s.setPriority)
	api.POST("/sessions/:id/tags", s.addTag)
	api.DELETE("/sessions/:id/tags/:tag", s.removeTag)
	api.POST("/sessions/:id/close", s.closeSession)
	api.POST("/sessions/:id/archive", s.archiveSession)
	api.POST("/sessions/:id/rating", s.rateSession)
	api.GET("/stats", s.stats)
	api.GET("/messages/search", s.searchMessages)
	api.GET("/notifications", s.listNotifications)
	api.POST("/notifications/read", s.markNotificationsSeen)

	e.GET("/ws/widget", s.widgetSocket)
	e.GET("/ws/console", s.consoleSocket)
}

// Start serves until ctx is cancelled, forwarding emitted notifications to
// live sockets in the background.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.forwardNotifications(ctx)
	log.WithField("addr", addr).Info("server listening")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the route tree for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// forwardNotifications pushes emitter events onto the matching sockets:
// console events go to every console, widget events only to the session the
// event belongs to.
func (s *Server) forwardNotifications(ctx context.Context) {
	consoleCh := s.emitter.Subscribe(notify.ConsumerConsole)
	widgetCh := s.emitter.Subscribe(notify.ConsumerWidget)
	defer s.emitter.Unsubscribe(notify.ConsumerConsole, consoleCh)
	defer s.emitter.Unsubscribe(notify.ConsumerWidget, widgetCh)

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-consoleCh:
			s.hub.ToConsoles(hub.Envelope{Type: "notification", Payload: n})
		case n := <-widgetCh:
			s.hub.ToSession(n.SessionID, hub.Envelope{Type: "notification", Payload: n})
		}
	}
}
