package web

import (
	"errors"
	"net/http"

	"github.com/dyluth/gauge/internal/edit"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/labstack/echo/v4"
)

var errBadRequest = errors.New("bad request")

type kpisResponse struct {
	Items   []kpi.Card `json:"items"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
	Banner  string     `json:"banner,omitempty"`
}

func kpisPayload(v replica.View[kpi.KPI]) kpisResponse {
	resp := kpisResponse{Items: make([]kpi.Card, 0, len(v.Items)), Loading: v.Loading}
	for _, k := range v.Items {
		resp.Items = append(resp.Items, k.Card())
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
		resp.Banner = notify.BannerText(v.Err)
	}
	return resp
}

// kpiPatch carries the fields a client wants to set. Absent fields keep
// their current value.
type kpiPatch struct {
	Name   *string  `json:"name"`
	Value  *float64 `json:"value"`
	Target *float64 `json:"target"`
	Unit   *string  `json:"unit"`
}

func (p kpiPatch) apply(k kpi.KPI) kpi.KPI {
	if p.Name != nil {
		k.Name = *p.Name
	}
	if p.Value != nil {
		k.Value = *p.Value
	}
	if p.Target != nil {
		k.Target = *p.Target
	}
	if p.Unit != nil {
		k.Unit = *p.Unit
	}
	return k
}

func (s *Server) listKPIs(c echo.Context) error {
	v, err := s.kpis.View(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, kpisPayload(v))
}

func (s *Server) getKPI(c echo.Context) error {
	k, err := s.kpis.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, k.Card())
}

// createKPI adds a KPI starting from the default draft and opens it for
// editing by the calling viewer.
func (s *Server) createKPI(c echo.Context) error {
	var p kpiPatch
	if err := c.Bind(&p); err != nil {
		return err
	}
	ctx := c.Request().Context()

	draft := p.apply(kpi.NewDraft())
	id, err := s.kpis.Create(ctx, draft)
	if err != nil {
		return err
	}
	draft.ID = id
	s.beginFor(c, func(sess *edit.Session[kpi.KPI]) { sess.Begin(draft) })

	c.Response().Header().Set(echo.HeaderLocation, "/api/kpis/"+id)
	return c.JSON(http.StatusCreated, draft.Card())
}

// saveKPI applies the body to the KPI and writes it. Unknown ids are
// created, matching the store's set semantics.
func (s *Server) saveKPI(c echo.Context) error {
	var p kpiPatch
	if err := c.Bind(&p); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	current, err := s.kpis.Get(ctx, id)
	if err != nil && !errors.Is(err, replica.ErrNotFound) {
		return err
	}
	rec := p.apply(current)
	rec.ID = id
	if err := s.kpis.Save(ctx, rec); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec.Card())
}

// removeKPI deletes the KPI and closes any edit of it.
func (s *Server) removeKPI(c echo.Context) error {
	id := c.Param("id")
	if err := s.kpis.Remove(c.Request().Context(), id); err != nil {
		return err
	}
	if n := s.forgetEverywhere(id); n > 0 {
		s.log.WithField("kpi", id).Debugf("Closed %d edit(s) of deleted KPI", n)
	}
	return c.NoContent(http.StatusNoContent)
}
