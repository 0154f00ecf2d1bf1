package web

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type alertPayload struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

type helloPayload struct {
	Viewer string `json:"viewer"`
}

// stream is a server-sent event feed. It opens with a "hello" naming the
// viewer id the screen should send back in HeaderViewer, then the current
// KPIs and board, then every change and alert until the client leaves.
func (s *Server) stream(c echo.Context) error {
	ctx := c.Request().Context()

	// Subscribe before reading the current state so no change slips in
	// between.
	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	// the viewer's edit, if any, ends with its stream
	viewer := uuid.NewString()
	defer s.endFor(viewer)

	initial := []event{}
	hello, err := encodeEvent("hello", helloPayload{Viewer: viewer})
	if err != nil {
		return err
	}
	initial = append(initial, hello)

	kv, err := s.kpis.View(ctx)
	if err != nil {
		return err
	}
	ev, err := encodeEvent(eventKPIs, kpisPayload(kv))
	if err != nil {
		return err
	}
	initial = append(initial, ev)

	bv, err := s.board.View(ctx)
	if err != nil {
		return err
	}
	ev, err = encodeEvent(eventBoard, boardPayload(bv))
	if err != nil {
		return err
	}
	initial = append(initial, ev)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range initial {
		if err := writeEvent(w, ev); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				s.log.WithError(err).Debug("Stream client went away")
				return nil
			}
		}
	}
}

func encodeEvent(name string, v any) (event, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return event{}, fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	return event{name: name, data: data}, nil
}

func writeEvent(w *echo.Response, ev event) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
