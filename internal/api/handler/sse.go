package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/somnialabs/dreamchat/internal/core/relay"
)

// sseSink implements relay.Sink over an HTTP response as a server-sent
// event stream. Each frame is flushed immediately so the caller sees
// increments as they arrive.
type sseSink struct {
	resp    *echo.Response
	started bool
}

// newSSESink returns a lazy sink: the streaming headers commit on the first
// Send, so failures before any frame can still produce a JSON error body.
func newSSESink(c echo.Context) *sseSink {
	return &sseSink{resp: c.Response()}
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	h := s.resp.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	s.resp.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseSink) Send(frame relay.Frame) error {
	s.start()
	var err error
	switch frame.Kind {
	case relay.FrameChunk:
		payload, mErr := json.Marshal(map[string]string{"chunk": frame.Chunk})
		if mErr != nil {
			return mErr
		}
		_, err = fmt.Fprintf(s.resp, "data: %s\n\n", payload)
	case relay.FrameDone:
		_, err = fmt.Fprint(s.resp, "data: [DONE]\n\n")
	case relay.FrameError:
		payload, mErr := json.Marshal(map[string]string{"error": frame.Error})
		if mErr != nil {
			return mErr
		}
		_, err = fmt.Fprintf(s.resp, "data: %s\n\n", payload)
	}
	if err != nil {
		return err
	}
	s.resp.Flush()
	return nil
}

// Close flushes whatever is pending. The connection itself closes when the
// handler returns.
func (s *sseSink) Close() error {
	if s.started {
		s.resp.Flush()
	}
	return nil
}
