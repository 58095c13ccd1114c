package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codehuddle/backend/internal/activity"
	"github.com/codehuddle/backend/internal/collab"
)

type testAPI struct {
	router   *chi.Mux
	registry *collab.Registry
	store    *activity.SQLite
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := activity.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	recorder := activity.NewRecorder(store, 16)
	registry := collab.NewRegistry()

	router := chi.NewRouter()
	New(registry, store, recorder).Routes(router)

	return &testAPI{router: router, registry: registry, store: store}
}

func (a *testAPI) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w, body
}

func TestHealthHandler(t *testing.T) {
	api := setupTestAPI(t)

	w, body := api.get(t, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestStatsHandler(t *testing.T) {
	api := setupTestAPI(t)

	api.registry.Join("room-a", "conn-1", "Alice")
	api.registry.Join("room-b", "conn-2", "Bob")

	w, body := api.get(t, "/api/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["active_rooms"])
	assert.Equal(t, float64(2), body["active_clients"])
	assert.Contains(t, body, "records_dropped")
	assert.Contains(t, body, "records_failed")
}

func TestRoomsHandler(t *testing.T) {
	api := setupTestAPI(t)

	api.registry.Join("room-a", "conn-1", "Alice")
	api.registry.Join("room-a", "conn-2", "Bob")
	api.registry.Join("room-b", "conn-3", "Carol")

	w, body := api.get(t, "/api/rooms")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])

	rooms, ok := body["rooms"].([]any)
	require.True(t, ok)
	require.Len(t, rooms, 2)

	first := rooms[0].(map[string]any)
	assert.Equal(t, "room-a", first["id"])
	assert.Equal(t, float64(2), first["participants"])
}

func TestRoomActivityHandler(t *testing.T) {
	api := setupTestAPI(t)
	ctx := context.Background()

	require.NoError(t, api.store.Append(ctx, "room-a", "Alice", "Joined the session"))
	require.NoError(t, api.store.Append(ctx, "room-a", "Alice", "Switched to python"))
	require.NoError(t, api.store.Append(ctx, "room-b", "Bob", "Joined the session"))

	w, body := api.get(t, "/api/rooms/room-a/activity")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room-a", body["room_id"])
	assert.Equal(t, float64(2), body["count"])

	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "Joined the session", first["action"])
}

func TestRoomActivityHandlerLimit(t *testing.T) {
	api := setupTestAPI(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, api.store.Append(ctx, "room", "Alice", "typed something"))
	}

	w, body := api.get(t, "/api/rooms/room/activity?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])

	// Out-of-range limits fall back to the default.
	w, body = api.get(t, "/api/rooms/room/activity?limit=9999")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["count"])
}
