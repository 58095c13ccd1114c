// Package api exposes the JSON HTTP surface: health, stats, active rooms
// and per-room activity history.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/codehuddle/backend/internal/activity"
	"github.com/codehuddle/backend/internal/collab"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 100
	queryTimeout         = 5 * time.Second
)

type API struct {
	registry *collab.Registry
	store    activity.Store
	recorder *activity.Recorder
}

func New(registry *collab.Registry, store activity.Store, recorder *activity.Recorder) *API {
	return &API{
		registry: registry,
		store:    store,
		recorder: recorder,
	}
}

// Routes registers the API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", a.HealthHandler)
	r.Get("/api/stats", a.StatsHandler)
	r.Get("/api/rooms", a.RoomsHandler)
	r.Get("/api/rooms/{roomID}/activity", a.RoomActivityHandler)
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		errorResponse(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"active_rooms":    a.registry.RoomCount(),
		"active_clients":  a.registry.ClientCount(),
		"records_dropped": a.recorder.Dropped(),
		"records_failed":  a.recorder.Failures(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

type RoomResponse struct {
	ID           string `json:"id"`
	Participants int    `json:"participants"`
}

func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	active := a.registry.ActiveRooms()

	rooms := make([]RoomResponse, 0, len(active))
	for id, count := range active {
		rooms = append(rooms, RoomResponse{ID: id, Participants: count})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (a *API) RoomActivityHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		errorResponse(w, http.StatusBadRequest, "room ID required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxActivityLimit {
		limit = defaultActivityLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	entries, err := a.store.Recent(ctx, roomID, limit)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to query activity history")
		errorResponse(w, http.StatusInternalServerError, "failed to load activity")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"entries": entries,
		"count":   len(entries),
	})
}
