package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/internal/lobby"
	"github.com/DoyleJ11/stop-backend/pkg/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Rooms interface {
	Create(ctx context.Context, s lobby.Settings) (*lobby.Room, error)
	Get(ctx context.Context, id string) *lobby.Room
}

type CreateRoomRequest struct {
	Password   string   `json:"password" validate:"max=64"`
	Letters    []string `json:"letters" validate:"required,min=1,max=64,unique,dive,len=1"`
	Categories []string `json:"categories" validate:"required,min=1,max=32,unique,dive,required,max=64"`
}

func CreateRoom(rooms Rooms, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid-request-format")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		room, err := rooms.Create(r.Context(), lobby.Settings{
			Password:   req.Password,
			Letters:    req.Letters,
			Categories: req.Categories,
		})
		switch {
		case errors.Is(err, engine.ErrNoLetters), errors.Is(err, engine.ErrBadLetter),
			errors.Is(err, engine.ErrNoCategories), errors.Is(err, engine.ErrTooManyCategories):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			log.Error("create room failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			ID string `json:"id"`
		}{ID: room.ID()})
	}
}

func GetRoom(rooms Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := rooms.Get(r.Context(), chi.URLParam(r, "id"))
		if room == nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		view, err := room.State(r.Context())
		if err != nil {
			// Closed between lookup and read.
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, types.RoomSnapshot{
			ID:         view.ID,
			Phase:      string(view.Phase),
			Players:    view.Players,
			Categories: view.Categories,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
