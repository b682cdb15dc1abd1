package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/nodesync/pkg/rpc"
)

// handleWebSocket upgrades the connection and serves batches for one UI.
// Each text frame carries an rpc.Request; each reply is an rpc.Response.
// The first frame sent is the UI's pending state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	u, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.config.MaxMessageSize)

	logger := s.logger.With("ui", u.ID())
	logger.Debug("websocket connected")

	initial, err := u.Flush()
	if err != nil {
		s.closeConn(conn, err)
		return
	}
	if err := s.writeFrame(conn, initial); err != nil {
		return
	}

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logger.Error("read error", "error", err)
			}
			return
		}

		var req rpc.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			logger.Debug("frame decode error", "error", err)
			if err := s.writeFrame(conn, rpc.Response{SyncID: u.SyncID(), Error: "server: invalid frame: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		resp, err := u.Handle(r.Context(), req)
		if errors.Is(err, ErrUIClosed) {
			s.closeConn(conn, err)
			return
		}
		if err := s.writeFrame(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, resp rpc.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("write error", "error", err)
		return err
	}
	return nil
}

func (s *Server) closeConn(conn *websocket.Conn, reason error) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason.Error())
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.config.WriteTimeout))
}
