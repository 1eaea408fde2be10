package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/core"
)

const writeTimeout = 5 * time.Second

// Frame is one websocket message sent to clients.
type Frame struct {
	Type    string        `json:"type"`
	Message *core.Message `json:"message,omitempty"`
	Missed  uint64        `json:"missed,omitempty"`
}

// Frame types.
const (
	FrameMessage = "message"
	FrameLagged  = "lagged"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.logger.Warn("dashboard.ws.accept_failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub := s.src.Bus().SubscribeAs("dashboard-ws")
	defer sub.Close()

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	s.logger.Debug("dashboard.ws.connected", "remote", r.RemoteAddr, "subscription", sub.ID())
	err = s.stream(ctx, conn, sub)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, bus.ErrClosed):
		_ = conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
	default:
		s.logger.Debug("dashboard.ws.closed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "stream failed")
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, sub *bus.Subscription) error {
	for {
		msg, err := sub.Recv(ctx)

		var frame Frame
		var lagged *bus.LaggedError
		switch {
		case errors.As(err, &lagged):
			frame = Frame{Type: FrameLagged, Missed: lagged.Missed}
		case err != nil:
			return err
		default:
			frame = Frame{Type: FrameMessage, Message: &msg}
		}

		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = wsjson.Write(wctx, conn, frame)
		cancel()
		if err != nil {
			return err
		}
	}
}
