// Package web serves the dashboard API for shared screens: JSON endpoints
// over the KPI and board replicas, the edit session, and a server-sent
// event stream that pushes every state change and alert.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/edit"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// KPIs is the KPI collection replica.
type KPIs interface {
	Create(ctx context.Context, draft kpi.KPI) (string, error)
	Save(ctx context.Context, rec kpi.KPI) error
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (kpi.KPI, error)
	View(ctx context.Context) (replica.View[kpi.KPI], error)
	OnChange(fn func(replica.View[kpi.KPI]))
	GenerateKey() string
}

// Board is the board document replica.
type Board interface {
	Mutate(ctx context.Context, fn func(board.Board) (board.Board, error)) error
	View(ctx context.Context) (replica.DocumentView[board.Board], error)
	OnChange(fn func(replica.DocumentView[board.Board]))
}

// Pinger checks store connectivity for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the dashboard HTTP server.
type Server struct {
	e     *echo.Echo
	kpis  KPIs
	board Board
	store Pinger
	hub   *hub
	log   *log.Entry

	mu       sync.Mutex
	sessions map[string]*edit.Session[kpi.KPI] // open edits by viewer id
}

// New wires routes and starts forwarding replica changes to the stream.
func New(kpis KPIs, doc Board, store Pinger, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "web")
	}
	s := &Server{
		e:        echo.New(),
		kpis:     kpis,
		board:    doc,
		store:    store,
		hub:      newHub(),
		log:      logger.WithField("server", uuid.NewString()),
		sessions: make(map[string]*edit.Session[kpi.KPI]),
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.JSONSerializer = sonicSerializer{}
	s.e.HTTPErrorHandler = s.handleError
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, HeaderViewer},
	}))
	s.e.Use(s.requestLogger)

	s.routes()

	kpis.OnChange(func(v replica.View[kpi.KPI]) { s.hub.publishJSON(eventKPIs, kpisPayload(v)) })
	doc.OnChange(func(v replica.DocumentView[board.Board]) { s.hub.publishJSON(eventBoard, boardPayload(v)) })
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.healthz)

	s.e.GET("/api/kpis", s.listKPIs)
	s.e.POST("/api/kpis", s.createKPI)
	s.e.GET("/api/kpis/:id", s.getKPI)
	s.e.PUT("/api/kpis/:id", s.saveKPI)
	s.e.DELETE("/api/kpis/:id", s.removeKPI)

	s.e.GET("/api/edit", s.getEdit)
	s.e.POST("/api/edit", s.beginEdit)
	s.e.PATCH("/api/edit", s.updateEdit)
	s.e.POST("/api/edit/commit", s.commitEdit)
	s.e.DELETE("/api/edit", s.cancelEdit)

	s.e.GET("/api/board", s.getBoard)
	s.e.PUT("/api/board/title", s.setBoardTitle)
	s.e.PUT("/api/board/date", s.setBoardDate)
	s.e.POST("/api/board/sections", s.addSection)
	s.e.PUT("/api/board/sections/:id", s.updateSection)
	s.e.DELETE("/api/board/sections/:id", s.removeSection)
	s.e.POST("/api/board/sections/:id/items", s.addItem)
	s.e.PUT("/api/board/items/:id", s.updateItem)
	s.e.DELETE("/api/board/items/:id", s.removeItem)

	s.e.GET("/api/stream", s.stream)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("Dashboard listening")
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, ends open streams and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.e.Shutdown(ctx)
}

// Alert pushes a write failure to every connected screen. Implements
// replica.Alerter.
func (s *Server) Alert(action string, err error) {
	s.log.WithError(err).WithField("action", action).Warn("Write-through failed")
	s.hub.publishJSON(eventAlert, alertPayload{Action: action, Error: err.Error()})
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.WithFields(log.Fields{
			"method":   c.Request().Method,
			"uri":      c.Request().RequestURI,
			"status":   c.Response().Status,
			"duration": time.Since(start),
		}).Debug("Request")
		return nil
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps domain errors to status codes.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(status)
		return
	}
	c.JSON(status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, replica.ErrNotFound),
		errors.Is(err, board.ErrSectionNotFound),
		errors.Is(err, board.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrDuplicateID),
		errors.Is(err, edit.ErrNotEditing):
		return http.StatusConflict
	case errors.Is(err, replica.ErrMissingID),
		errors.Is(err, board.ErrMissingID),
		errors.Is(err, board.ErrInvalidColumn),
		errors.Is(err, board.ErrUnknownIcon),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, replica.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
