package web

import (
	"net/http"

	"github.com/dyluth/gauge/internal/edit"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/labstack/echo/v4"
)

// HeaderViewer names the screen making a request. Each viewer has its own
// edit session; requests without it share the anonymous one.
const HeaderViewer = "X-Gauge-Viewer"

const anonymousViewer = "anonymous"

type editResponse struct {
	State string    `json:"state"`
	ID    string    `json:"id,omitempty"`
	New   bool      `json:"new"`
	Draft *kpi.Card `json:"draft,omitempty"`
}

func editPayload(snap edit.Snapshot[kpi.KPI]) editResponse {
	resp := editResponse{State: snap.State.String(), ID: snap.ID, New: snap.New}
	if snap.State == edit.Editing {
		card := snap.Draft.Card()
		resp.Draft = &card
	}
	return resp
}

type beginRequest struct {
	ID string `json:"id"` // empty starts a brand new KPI
}

func viewerID(c echo.Context) string {
	if v := c.Request().Header.Get(HeaderViewer); v != "" {
		return v
	}
	return anonymousViewer
}

// beginFor opens an edit for the calling viewer, creating its session.
// Sessions only exist while their viewer is editing.
func (s *Server) beginFor(c echo.Context, begin func(*edit.Session[kpi.KPI])) edit.Snapshot[kpi.KPI] {
	viewer := viewerID(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[viewer]
	if !ok {
		sess = edit.NewSession[kpi.KPI](s.kpis, s.kpis, kpi.Shape{})
		s.sessions[viewer] = sess
	}
	begin(sess)
	return sess.Snapshot()
}

// sessionOf returns the viewer's open session, or nil.
func (s *Server) sessionOf(viewer string) *edit.Session[kpi.KPI] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[viewer]
}

// endFor removes the viewer's session and returns it, or nil.
func (s *Server) endFor(viewer string) *edit.Session[kpi.KPI] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[viewer]
	delete(s.sessions, viewer)
	return sess
}

// forgetEverywhere closes every viewer's edit of id.
func (s *Server) forgetEverywhere(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for viewer, sess := range s.sessions {
		if sess.Forget(id) {
			delete(s.sessions, viewer)
			n++
		}
	}
	return n
}

func (s *Server) getEdit(c echo.Context) error {
	sess := s.sessionOf(viewerID(c))
	if sess == nil {
		return c.JSON(http.StatusOK, editResponse{State: edit.Idle.String()})
	}
	return c.JSON(http.StatusOK, editPayload(sess.Snapshot()))
}

func (s *Server) beginEdit(c echo.Context) error {
	var req beginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if req.ID == "" {
		snap := s.beginFor(c, func(sess *edit.Session[kpi.KPI]) { sess.BeginNew(kpi.NewDraft()) })
		return c.JSON(http.StatusOK, editPayload(snap))
	}
	rec, err := s.kpis.Get(c.Request().Context(), req.ID)
	if err != nil {
		return err
	}
	snap := s.beginFor(c, func(sess *edit.Session[kpi.KPI]) { sess.Begin(rec) })
	return c.JSON(http.StatusOK, editPayload(snap))
}

func (s *Server) updateEdit(c echo.Context) error {
	var p kpiPatch
	if err := c.Bind(&p); err != nil {
		return err
	}
	sess := s.sessionOf(viewerID(c))
	if sess == nil {
		return edit.ErrNotEditing
	}
	if err := sess.Update(p.apply); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, editPayload(sess.Snapshot()))
}

func (s *Server) commitEdit(c echo.Context) error {
	sess := s.endFor(viewerID(c))
	if sess == nil {
		return edit.ErrNotEditing
	}
	saved, err := sess.Commit(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved.Card())
}

func (s *Server) cancelEdit(c echo.Context) error {
	if sess := s.endFor(viewerID(c)); sess != nil {
		sess.Cancel()
	}
	return c.NoContent(http.StatusNoContent)
}
