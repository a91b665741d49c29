package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"gendesk/internal/domain"
	"gendesk/internal/hub"
	"gendesk/internal/notify"
	"gendesk/internal/query"
	"gendesk/internal/registry"
)

type createSessionRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	PageURL    string `json:"pageUrl"`
	UserAgent  string `json:"userAgent"`
}

type sendMessageRequest struct {
	Text        string              `json:"text"`
	Sender      domain.Sender       `json:"sender"`
	Attachments []domain.Attachment `json:"attachments"`
}

type assignRequest struct {
	AdminID   string `json:"adminId"`
	AdminName string `json:"adminName"`
}

type priorityRequest struct {
	Priority domain.Priority `json:"priority"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type ratingRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

type seenRequest struct {
	Consumer notify.Consumer `json:"consumer"`
	IDs      []string        `json:"ids"`
}

// httpError maps domain errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyVisitorName),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := s.registry.Create(c.Request().Context(), registry.CreateProfile{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		PageURL:    req.PageURL,
		UserAgent:  req.UserAgent,
	})
	if err != nil {
		return httpError(err)
	}

	s.responder.SessionCreated(session.ID, session.VisitorName)
	s.hub.ToConsoles(hub.Envelope{Type: hub.TypeSessionMeta, Payload: hub.SessionPayload{Session: session}})
	return c.JSON(http.StatusCreated, session)
}

func (s *Server) listSessions(c echo.Context) error {
	f := query.Filter{
		Status:     c.QueryParam("status"),
		Priority:   c.QueryParam("priority"),
		Department: c.QueryParam("department"),
		Search:     c.QueryParam("q"),
	}
	return c.JSON(http.StatusOK, query.Apply(s.registry.Sessions(), f))
}

func (s *Server) getSession(c echo.Context) error {
	session, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sender := req.Sender
	if sender == "" {
		sender = domain.SenderAdmin
	}

	sessionID := c.Param("id")
	msg, err := s.registry.SendMessage(c.Request().Context(), sessionID, req.Text, sender, req.Attachments)
	if err != nil {
		return httpError(err)
	}

	env := hub.Envelope{Type: hub.TypeMessage, Payload: hub.MessagePayload{SessionID: sessionID, Message: *msg}}
	s.hub.ToSession(sessionID, env)
	s.hub.ToConsoles(env)
	if sender == domain.SenderUser {
		s.responder.VisitorMessage(sessionID, req.Text)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) markAsRead(c echo.Context) error {
	// The REST surface belongs to the console; the widget marks read over
	// its socket.
	s.registry.MarkAsRead(c.Request().Context(), c.Param("id"), domain.SenderAdmin)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) assignSession(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AdminID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "adminId is required")
	}
	err := s.registry.Assign(c.Request().Context(), c.Param("id"), domain.AssignedTo{ID: req.AdminID, Name: req.AdminName})
	if err != nil {
		return httpError(err)
	}
	return s.pushSessionUpdate(c)
}

func (s *Server) setPriority(c echo.Context) error {
	var req priorityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.registry.SetPriority(c.Request().Context(), c.Param("id"), req.Priority); err != nil {
		return httpError(err)
	}
	return s.pushSessionUpdate(c)
}

func (s *Server) addTag(c echo.Context) error {
	var req tagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.registry.AddTag(c.Request().Context(), c.Param("id"), req.Tag); err != nil {
		return httpError(err)
	}
	return s.pushSessionUpdate(c)
}

func (s *Server) removeTag(c echo.Context) error {
	if err := s.registry.RemoveTag(c.Request().Context(), c.Param("id"), c.Param("tag")); err != nil {
		return httpError(err)
	}
	return s.pushSessionUpdate(c)
}

func (s *Server) closeSession(c echo.Context) error {
	if err := s.registry.Close(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return s.pushSessionUpdate(c)
}

func (s *Server) archiveSession(c echo.Context) error {
	if err := s.registry.Archive(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return s.pushSessionUpdate(c)
}

func (s *Server) rateSession(c echo.Context) error {
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.registry.Rate(c.Request().Context(), c.Param("id"), req.Rating, req.Feedback); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, query.ComputeStats(s.registry.Sessions()))
}

func (s *Server) searchMessages(c echo.Context) error {
	matches := query.SearchMessages(s.registry.Sessions(), c.QueryParam("q"))
	if matches == nil {
		matches = []query.MessageMatch{}
	}
	return c.JSON(http.StatusOK, matches)
}

func (s *Server) listNotifications(c echo.Context) error {
	consumer := notify.Consumer(c.QueryParam("consumer"))
	if consumer == "" {
		consumer = notify.ConsumerConsole
	}
	pending := s.emitter.Pending(consumer)
	if pending == nil {
		pending = []notify.Notification{}
	}
	return c.JSON(http.StatusOK, pending)
}

func (s *Server) markNotificationsSeen(c echo.Context) error {
	var req seenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Consumer == "" {
		req.Consumer = notify.ConsumerConsole
	}
	s.emitter.MarkSeen(req.Consumer, req.IDs...)
	return c.NoContent(http.StatusNoContent)
}

// pushSessionUpdate broadcasts the refreshed session to consoles and to the
// widget watching it, then returns it to the caller.
func (s *Server) pushSessionUpdate(c echo.Context) error {
	session, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	env := hub.Envelope{Type: hub.TypeSessionMeta, Payload: hub.SessionPayload{Session: session}}
	s.hub.ToConsoles(env)
	s.hub.ToSession(session.ID, env)
	return c.JSON(http.StatusOK, session)
}
