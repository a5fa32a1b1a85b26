package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/testfixtures"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAPI serves a studio where trainer-1 and trainer-2 work 09:00-17:00 on
// weekdays and trainer-1 has sessions "a" at 10:00 and "b" at 14:00 on
// Monday 2024-03-11.
func newTestAPI(t *testing.T) (http.Handler, *testfixtures.Harness) {
	t.Helper()

	factory := testfixtures.NewServiceFactory()
	h := factory.NewMemoryHarness()
	monday := testfixtures.ReferenceDate()

	h.SeedTrainers(t, testfixtures.NewTrainer("trainer-1", "Ana"), testfixtures.NewTrainer("trainer-2", "Ben"))
	h.SeedSchedule(t, "trainer-1", testfixtures.WorkWeek("trainer-1", "09:00", "17:00")...)
	h.SeedSchedule(t, "trainer-2", testfixtures.WorkWeek("trainer-2", "09:00", "17:00")...)
	h.SeedSessions(t,
		testfixtures.NewSessionFixture(testfixtures.WithSessionID("a"), testfixtures.WithSlot(monday, "10:00")),
		testfixtures.NewSessionFixture(testfixtures.WithSessionID("b"), testfixtures.WithSlot(monday, "14:00")),
	)

	logger := quietLogger()
	router := NewRouter(RouterConfig{
		Sessions:     NewSessionHandler(h.Scheduling, logger),
		Availability: NewAvailabilityHandler(h.Availability, logger),
		Trainers:     NewTrainerHandler(application.NewTrainerService(h.Store, factory.IDGenerator.NextFunc(), logger), logger),
		Gestures:     NewGestureHandler(h.Gestures, logger),
		Middleware:   []func(http.Handler) http.Handler{RequestLogger(logger)},
		CORSOrigins:  []string{"https://studio.example.com"},
	})
	return router, h
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out), rec.Body.String())
	return out
}

func TestSessionHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list sessions in range", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodGet, "/sessions?from=2024-03-11&to=2024-03-11", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[listSessionsResponse](t, rec)
		require.Len(t, body.Sessions, 2)
		assert.Equal(t, "a", body.Sessions[0].ID)
		assert.Equal(t, "2024-03-11T10:00:00Z", body.Sessions[0].Start)

		rec = do(t, api, http.MethodGet, "/sessions?from=2024-03-12&to=2024-03-11", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = do(t, api, http.MethodGet, "/sessions", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("check reports conflicts and alternatives", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPost, "/sessions/a/check", `{"date":"2024-03-11","start":"14:00"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[checkResultDTO](t, rec)
		assert.False(t, body.Valid)
		var related []string
		for _, c := range body.Conflicts {
			if c.Reason == "double_booking" {
				related = append(related, c.RelatedSessionID)
			}
		}
		assert.Equal(t, []string{"b"}, related)
		assert.NotEmpty(t, body.Alternatives)

		rec = do(t, api, http.MethodPost, "/sessions/a/check", `{"date":"2024-03-11","start":"11:30"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[checkResultDTO](t, rec).Valid)
	})

	t.Run("move honours versions and conflicts", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPost, "/sessions/a/move", `{"date":"2024-03-11","start":"12:00","expected_version":1}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 2, decode[sessionResponse](t, rec).Session.Version)

		rec = do(t, api, http.MethodPost, "/sessions/a/move", `{"date":"2024-03-11","start":"11:00","expected_version":1}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONCURRENT_UPDATE", decode[errorResponse](t, rec).ErrorCode)

		rec = do(t, api, http.MethodPost, "/sessions/a/move", `{"date":"2024-03-11","start":"14:30","expected_version":2}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		conflict := decode[errorResponse](t, rec)
		assert.Equal(t, "SCHEDULING_CONFLICT", conflict.ErrorCode)
		assert.NotEmpty(t, conflict.Alternatives)
	})

	t.Run("create session", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPost, "/sessions", `{"trainer_id":"trainer-2","client_id":"c9","date":"2024-03-11","start":"09:00","duration_minutes":45}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decode[sessionResponse](t, rec)
		assert.Equal(t, "scheduled", body.Session.Status)
		require.Len(t, body.Warnings, 1)
		assert.Equal(t, "unusual_duration", body.Warnings[0].Reason)

		rec = do(t, api, http.MethodPost, "/sessions", `{"date":"2024-03-11","start":"09:00","duration_minutes":60}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Errors, "trainer_id")

		rec = do(t, api, http.MethodPost, "/sessions", `{"trainer":"trainer-1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session and method", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		assert.Equal(t, http.StatusNotFound, do(t, api, http.MethodGet, "/sessions/missing", "").Code)
		assert.Equal(t, http.StatusMethodNotAllowed, do(t, api, http.MethodPatch, "/sessions", "").Code)
	})

	t.Run("buffer zones", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodGet, "/buffers?from=2024-03-11", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[buffersResponse](t, rec)
		require.Len(t, body.BufferZones, 4)
		assert.Equal(t, "2024-03-11T09:45:00Z", body.BufferZones[0].Start)
	})
}

func TestAvailabilityHandlers(t *testing.T) {
	t.Parallel()

	t.Run("replace schedule and read grid", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPut, "/trainers/trainer-1/availability",
			`{"entries":[{"day_of_week":1,"start_time":"08:00","end_time":"12:00","type":"available"}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, decode[entriesResponse](t, rec).Entries, 1)

		rec = do(t, api, http.MethodGet, "/trainers/trainer-1/availability/grid", "")
		require.Equal(t, http.StatusOK, rec.Code)
		grid := decode[gridDTO](t, rec)
		assert.True(t, grid.Days[1][8])
		assert.False(t, grid.Days[1][12])
		assert.Equal(t, 4, grid.Days.Hours())
	})

	t.Run("patch grid edits hours and queues overrides", func(t *testing.T) {
		t.Parallel()
		api, h := newTestAPI(t)

		rec := do(t, api, http.MethodPatch, "/trainers/trainer-1/availability/grid",
			`{"edits":[{"day_of_week":1,"from":12,"to":13,"available":false},{"day_of_week":6,"from":10,"to":12,"available":true}],
			  "overrides":[{"date":"2024-03-12","start_time":"00:00","end_time":"24:00","type":"vacation"}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		grid := decode[gridDTO](t, rec)
		assert.False(t, grid.Days[1][12])
		assert.True(t, grid.Days[6][11])
		assert.Equal(t, 5*8-1+2, grid.Days.Hours())

		entries, err := h.Availability.Entries(context.Background(), "trainer-1")
		require.NoError(t, err)
		var overrides int
		for _, e := range entries {
			if !e.Recurring {
				overrides++
			}
		}
		assert.Equal(t, 1, overrides)

		rec = do(t, api, http.MethodPatch, "/trainers/trainer-1/availability/grid",
			`{"edits":[{"day_of_week":2,"from":9,"to":25,"available":true}],"overrides":[{"start_time":"10:00","end_time":"11:00","type":"blocked"}]}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := decode[errorResponse](t, rec).Errors
		assert.Contains(t, errs, "edits[0].to")
		assert.Contains(t, errs, "overrides[0].date")
	})

	t.Run("invalid entries are reported per field", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPut, "/trainers/trainer-1/availability",
			`{"entries":[{"day_of_week":1,"start_time":"12:00","end_time":"08:00","type":"available"}]}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Errors, "entries[0].end_time")

		rec = do(t, api, http.MethodGet, "/trainers/ghost/availability", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("overrides shape the calendar", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPost, "/trainers/trainer-1/overrides",
			`{"date":"2024-03-12","start_time":"00:00","end_time":"24:00","type":"vacation"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		override := decode[entryDTO](t, rec)
		assert.False(t, override.Recurring)

		rec = do(t, api, http.MethodGet, "/trainers/trainer-1/calendar?from=2024-03-11&to=2024-03-13", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[calendarResponse](t, rec).Occurrences, 2)

		rec = do(t, api, http.MethodDelete, "/trainers/trainer-1/overrides/"+override.ID, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, api, http.MethodDelete, "/trainers/trainer-1/overrides/"+override.ID, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("prune overrides", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		rec := do(t, api, http.MethodPost, "/trainers/trainer-1/overrides",
			`{"date":"2024-03-01","start_time":"09:00","end_time":"10:00","type":"blocked"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = do(t, api, http.MethodDelete, "/overrides?before=2024-03-11", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[pruneResponse](t, rec).Removed)

		assert.Equal(t, http.StatusBadRequest, do(t, api, http.MethodDelete, "/overrides", "").Code)
	})
}

func TestTrainerHandlers(t *testing.T) {
	t.Parallel()
	api, _ := newTestAPI(t)

	rec := do(t, api, http.MethodPut, "/trainers/trainer-3", `{"name":"Cleo","email":"cleo@studio.example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "trainer-3", decode[trainerDTO](t, rec).ID)

	rec = do(t, api, http.MethodGet, "/trainers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listTrainersResponse](t, rec).Trainers, 3)

	rec = do(t, api, http.MethodPut, "/trainers/trainer-4", `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGestureHandlers(t *testing.T) {
	t.Parallel()

	t.Run("hover then drop commits", func(t *testing.T) {
		t.Parallel()
		api, h := newTestAPI(t)

		rec := do(t, api, http.MethodPost, "/gestures", `{"session_id":"a"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		started := decode[previewDTO](t, rec)
		require.True(t, started.Dragging)
		assert.Equal(t, "none", started.Affordance)

		rec = do(t, api, http.MethodPost, "/gestures/"+started.GestureID+"/hover",
			`{"target":{"date":"2024-03-11","start":"11:30"},"wait":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		hovered := decode[previewDTO](t, rec)
		assert.True(t, hovered.IsValidDrop)
		assert.Equal(t, "valid", hovered.Affordance)
		require.NotNil(t, hovered.Ghost)
		assert.Equal(t, "2024-03-11T11:30:00Z", hovered.Ghost.Start)

		rec = do(t, api, http.MethodPost, "/gestures/"+started.GestureID+"/drop",
			`{"target":{"date":"2024-03-11","start":"11:30"}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		dropped := decode[dropDTO](t, rec)
		assert.Equal(t, "committed", dropped.Outcome)
		require.NotNil(t, dropped.Session)
		assert.Equal(t, 2, dropped.Session.Version)
		assert.Zero(t, h.Gestures.Active())

		assert.Equal(t, http.StatusNotFound, do(t, api, http.MethodGet, "/gestures/"+started.GestureID, "").Code)
	})

	t.Run("drop without target cancels", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		started := decode[previewDTO](t, do(t, api, http.MethodPost, "/gestures", `{"session_id":"a"}`))
		rec := do(t, api, http.MethodPost, "/gestures/"+started.GestureID+"/drop", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cancelled", decode[dropDTO](t, rec).Outcome)
	})

	t.Run("cancel and unknown gestures", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t)

		started := decode[previewDTO](t, do(t, api, http.MethodPost, "/gestures", `{"session_id":"a"}`))
		assert.Equal(t, http.StatusNoContent, do(t, api, http.MethodDelete, "/gestures/"+started.GestureID, "").Code)
		assert.Equal(t, http.StatusNotFound, do(t, api, http.MethodDelete, "/gestures/"+started.GestureID, "").Code)
		assert.Equal(t, http.StatusNotFound, do(t, api, http.MethodPost, "/gestures", `{"session_id":"ghost"}`).Code)
	})
}

func TestRouterCORS(t *testing.T) {
	t.Parallel()
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/sessions/a/move", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	assert.Equal(t, "https://studio.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGestureLimitAnswersServiceUnavailable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newResponder(quietLogger()).handleServiceError(context.Background(), rec, application.ErrTooManyGestures)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "GESTURE_LIMIT", decode[errorResponse](t, rec).ErrorCode)
}
