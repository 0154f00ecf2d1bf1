package web

import (
	"fmt"
	"net/http"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/labstack/echo/v4"
)

type boardResponse struct {
	Board   board.Board    `json:"board"`
	Columns []board.Column `json:"columns"`
	Exists  bool           `json:"exists"`
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
	Banner  string         `json:"banner,omitempty"`
}

func boardPayload(v replica.DocumentView[board.Board]) boardResponse {
	b := v.Value.Clone()
	resp := boardResponse{
		Board:   b,
		Columns: b.Columns(),
		Exists:  v.Exists,
		Loading: v.Loading,
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
		resp.Banner = notify.BannerText(v.Err)
	}
	return resp
}

type titleRequest struct {
	Title string `json:"title"`
}

type dateRequest struct {
	Date string `json:"date"`
}

type sectionRequest struct {
	ID     string     `json:"id"`
	Column int        `json:"column"`
	Title  string     `json:"title"`
	Icon   board.Icon `json:"icon"`
}

type itemRequest struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
	HasKPI bool    `json:"hasKpi"`
}

func (r itemRequest) item() board.Item {
	return board.Item{ID: r.ID, Text: r.Text, Value: r.Value, Target: r.Target, Unit: r.Unit, HasKPI: r.HasKPI}
}

func (s *Server) getBoard(c echo.Context) error {
	v, err := s.board.View(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, boardPayload(v))
}

// mutate applies fn to the board and replies with the resulting view.
func (s *Server) mutate(c echo.Context, status int, fn func(board.Board) (board.Board, error)) error {
	ctx := c.Request().Context()
	if err := s.board.Mutate(ctx, fn); err != nil {
		return err
	}
	v, err := s.board.View(ctx)
	if err != nil {
		return err
	}
	return c.JSON(status, boardPayload(v))
}

func (s *Server) setBoardTitle(c echo.Context) error {
	var req titleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	return s.mutate(c, http.StatusOK, func(b board.Board) (board.Board, error) {
		return b.SetTitle(req.Title), nil
	})
}

func (s *Server) setBoardDate(c echo.Context) error {
	var req dateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	return s.mutate(c, http.StatusOK, func(b board.Board) (board.Board, error) {
		return b.SetDate(req.Date), nil
	})
}

func (s *Server) addSection(c echo.Context) error {
	var req sectionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = s.kpis.GenerateKey()
	}
	sec := board.Section{ID: req.ID, Column: req.Column, Title: req.Title, Icon: req.Icon}
	return s.mutate(c, http.StatusCreated, func(b board.Board) (board.Board, error) {
		return b.AddSection(sec)
	})
}

func (s *Server) updateSection(c echo.Context) error {
	var req sectionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := sameID(c.Param("id"), req.ID); err != nil {
		return err
	}
	sec := board.Section{ID: c.Param("id"), Column: req.Column, Title: req.Title, Icon: req.Icon}
	return s.mutate(c, http.StatusOK, func(b board.Board) (board.Board, error) {
		return b.UpdateSection(sec)
	})
}

func (s *Server) removeSection(c echo.Context) error {
	id := c.Param("id")
	return s.mutate(c, http.StatusOK, func(b board.Board) (board.Board, error) {
		return b.RemoveSection(id)
	})
}

func (s *Server) addItem(c echo.Context) error {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = s.kpis.GenerateKey()
	}
	sectionID := c.Param("id")
	it := req.item()
	return s.mutate(c, http.StatusCreated, func(b board.Board) (board.Board, error) {
		return b.AddItem(sectionID, it)
	})
}

func (s *Server) updateItem(c echo.Context) error {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := sameID(c.Param("id"), req.ID); err != nil {
		return err
	}
	req.ID = c.Param("id")
	it := req.item()
	return s.mutate(c, http.StatusOK, func(b board.Board) (board.Board, error) {
		return b.UpdateItem(it)
	})
}

func (s *Server) removeItem(c echo.Context) error {
	id := c.Param("id")
	return s.mutate(c, http.StatusOK, func(b board.Board) (board.Board, error) {
		return b.RemoveItem(id)
	})
}

// sameID rejects bodies that name a different record than the URL.
func sameID(path, body string) error {
	if body != "" && body != path {
		return fmt.Errorf("%w: body id %q does not match %q", errBadRequest, body, path)
	}
	return nil
}
