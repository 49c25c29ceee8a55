// internal/httpserver/events.go
//
// Websocket stream of controller events for one session.
//   - The first frame is {"kind":"snapshot","state":{...}}; another snapshot
//     follows every board_replaced event.
//   - Every other frame is a game.Event.
//   - Clients may send commands: {"type":"activate","tileId":3},
//     {"type":"restart"}, {"type":"reset"}, {"type":"hard_reset"}.
//
// Only the handler goroutine writes to the connection. The controller
// listener just enqueues; a slow client drops events and can resync from
// the next snapshot.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/matchgames/internal/game"
	"github.com/robalobadob/matchgames/internal/store"
)

const (
	eventBuffer = 64
	writeWait   = 5 * time.Second
	pingPeriod  = 30 * time.Second
)

type snapshotFrame struct {
	Kind  string        `json:"kind"`
	State game.Snapshot `json:"state"`
}

type wsCommand struct {
	Type   string `json:"type"`
	TileID int    `json:"tileId"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.cfg.ClientOrigin
		},
	}
}

// handleEvents upgrades the request and streams the session's events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		log.Debug().Err(err).Str("game", sess.ID).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	out := make(chan game.Event, eventBuffer)
	unsubscribe := sess.Controller.Subscribe(func(e game.Event) {
		select {
		case out <- e:
		default:
			log.Debug().Str("game", sess.ID).Str("kind", string(e.Kind)).Msg("event dropped")
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readCommands(ctx, cancel, conn, sess)

	if err := s.writeFrame(conn, snapshotFrame{Kind: "snapshot", State: sess.Controller.Snapshot()}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-out:
			if err := s.writeFrame(conn, e); err != nil {
				return
			}
			if e.Kind == game.EventBoardReplaced {
				if err := s.writeFrame(conn, snapshotFrame{Kind: "snapshot", State: sess.Controller.Snapshot()}); err != nil {
					return
				}
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		log.Debug().Err(err).Msg("websocket write")
		return err
	}
	return nil
}

// readCommands applies client commands until the connection fails, then
// cancels the stream.
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *store.Session) {
	defer cancel()
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Type {
		case "activate":
			sess.Controller.Activate(ctx, cmd.TileID)
		case "restart":
			sess.Controller.NextRound()
		case "reset":
			sess.Controller.Reset()
			sess.Controller.Start()
		case "hard_reset":
			sess.Controller.HardReset(ctx)
			sess.Controller.Start()
		default:
			log.Debug().Str("type", cmd.Type).Msg("unknown websocket command")
		}
	}
}
