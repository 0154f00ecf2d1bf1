package web

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthTimeout = 2 * time.Second

// HealthResponse is the JSON body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
	KPIs   string `json:"kpis"`
	Board  string `json:"board"`
	Error  string `json:"error,omitempty"`
}

// healthz returns 200 when the store answers and both replicas are live,
// 503 otherwise.
func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Redis: "connected"}
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Redis = "disconnected"
		resp.Error = err.Error()
	}

	kv, err := s.kpis.View(ctx)
	resp.KPIs = replicaHealth(kv.Loading, kv.Err, err)
	bv, err := s.board.View(ctx)
	resp.Board = replicaHealth(bv.Loading, bv.Err, err)

	if resp.KPIs != "live" || resp.Board != "live" {
		resp.Status = "unhealthy"
	}
	if resp.Status != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func replicaHealth(loading bool, statusErr, viewErr error) string {
	switch {
	case viewErr != nil:
		return "stopped"
	case statusErr != nil:
		return "offline"
	case loading:
		return "loading"
	default:
		return "live"
	}
}
