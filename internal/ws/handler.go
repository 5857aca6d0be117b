package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/stop-backend/internal/lobby"
	pubtypes "github.com/DoyleJ11/stop-backend/pkg/types"
)

const (
	maxNameLength = 24
	closeWait     = 5 * time.Second
)

type Registry interface {
	Get(ctx context.Context, id string) *lobby.Room
}

// Handler serves GET /rooms/{id}/ws?name=...&password=...
func Handler(reg Registry, cfg Config, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "id")
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		password := r.URL.Query().Get("password")
		if name == "" || utf8.RuneCountInString(name) > maxNameLength {
			http.Error(w, "invalid name", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}

		room := reg.Get(r.Context(), roomID)
		if room == nil {
			conn.Close(websocket.StatusCode(pubtypes.CloseNoRoomWithID), "no room with this id")
			return
		}
		if !room.CheckPassword(password) {
			conn.Close(websocket.StatusCode(pubtypes.CloseWrongRoomPassword), "wrong room password")
			return
		}

		plog := log.With(zap.String("room_id", roomID), zap.String("player", name))
		out := NewConn(conn, plog)
		playerID, err := room.Join(r.Context(), name, out)
		switch {
		case errors.Is(err, lobby.ErrDuplicateName):
			conn.Close(websocket.StatusCode(pubtypes.CloseNicknameAlreadyInRoom), "nickname already in room")
			return
		case err != nil:
			conn.Close(websocket.StatusCode(pubtypes.CloseNoRoomWithID), "no room with this id")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		go out.WritePump(ctx)

		sup := NewSupervisor(room, playerID, cfg, plog)
		defer func() {
			sup.Closed()
			out.Close(int(websocket.StatusNormalClosure), "bye")
			select {
			case <-out.Done():
			case <-time.After(closeWait):
			}
			cancel()
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					plog.Debug("read ended", zap.Error(err))
				}
				return
			}

			if err := sup.Handle(ctx, data); err != nil {
				plog.Info("protocol violation", zap.Error(err))
				out.Close(int(websocket.StatusPolicyViolation), "malformed message")
				return
			}
		}
	}
}
