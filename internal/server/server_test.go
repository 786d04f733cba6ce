package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/packmind/internal/artifact"
	"github.com/sells-group/packmind/internal/auth"
	"github.com/sells-group/packmind/internal/config"
	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/predictor"
	"github.com/sells-group/packmind/internal/store"
	"github.com/sells-group/packmind/internal/trainer"
)

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	store  store.Store
	cookie *http.Cookie
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	artifacts, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)

	tr := trainer.New(st, artifacts, config.TrainConfig{
		PersonalTrees: 20, GlobalTrees: 20, ForgetIterations: 200, ForgetLearningRate: 0.1,
	})
	s := New(st, artifacts, tr, predictor.New(artifacts),
		config.ServerConfig{Port: 0, BaseURL: "http://test"},
		config.AuthConfig{Secret: "test-secret", SessionTTLHours: 1})

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, store: st}
}

func (a *testAPI) do(method, path string, body any) *http.Response {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// signUp registers and logs in a user, storing the session cookie.
func (a *testAPI) signUp(email string) {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/api/register", map[string]string{"email": email, "password": "pw"})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)

	resp = a.do(http.MethodPost, "/api/login", map[string]string{"email": email, "password": "pw"})
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			a.cookie = c
		}
	}
	require.NotNil(a.t, a.cookie, "login did not set session cookie")
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister_SeedsDefaultItems(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodGet, "/api/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]model.Item](t, resp)
	assert.Len(t, items, 13)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/register", map[string]string{"email": "alice@example.com", "password": "pw2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.do(http.MethodPost, "/api/login", map[string]string{"email": "nobody@example.com", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndPatchItem(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/items", map[string]string{"name": "Yoga Mat", "priority": "low", "category": "gym"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decode[model.Item](t, resp)
	assert.Equal(t, model.PriorityLow, item.Priority)
	assert.True(t, item.Active)

	// Duplicate name conflicts.
	resp = api.do(http.MethodPost, "/api/items", map[string]string{"name": "Yoga Mat"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodPatch, fmt.Sprintf("/api/items/%d", item.ID),
		map[string]any{"priority": "high", "active": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[model.Item](t, resp)
	assert.Equal(t, model.PriorityHigh, patched.Priority)
	assert.False(t, patched.Active)

	resp = api.do(http.MethodPatch, "/api/items/99999", map[string]any{"active": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChecklistFlow(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodGet, "/api/checklist/today", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	checklist := decode[struct {
		Date  string           `json:"date"`
		Items []checklistEntry `json:"items"`
	}](t, resp)
	require.Len(t, checklist.Items, 13)
	assert.Equal(t, store.DateKey(time.Now()), checklist.Date)
	assert.False(t, checklist.Items[0].Packed)
	assert.Nil(t, checklist.Items[0].NeededLabel)

	needed := true
	resp = api.do(http.MethodPost, "/api/checklist", map[string]any{
		"statuses": []map[string]any{
			{"item_id": checklist.Items[0].ItemID, "packed": true, "needed_label": needed},
			{"item_id": checklist.Items[1].ItemID, "packed": false},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/checklist/today", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	checklist = decode[struct {
		Date  string           `json:"date"`
		Items []checklistEntry `json:"items"`
	}](t, resp)
	assert.True(t, checklist.Items[0].Packed)
	require.NotNil(t, checklist.Items[0].NeededLabel)
	assert.True(t, *checklist.Items[0].NeededLabel)
	assert.False(t, checklist.Items[1].Packed)
	assert.Nil(t, checklist.Items[1].NeededLabel)
}

func TestTrain_NotEnoughData(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/train", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "not enough data to train model", body["error"])

	resp = api.do(http.MethodPost, "/api/train/global", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// seedHistory labels two weeks of history through the store so training can
// succeed.
func (a *testAPI) seedHistory(email string) {
	a.t.Helper()
	ctx := context.Background()
	user, err := a.store.GetUserByEmail(ctx, email)
	require.NoError(a.t, err)
	require.NotNil(a.t, user)
	items, err := a.store.ListItems(ctx, user.ID, true)
	require.NoError(a.t, err)
	require.NotEmpty(a.t, items)

	start := time.Now().UTC().AddDate(0, 0, -14)
	for d := 0; d < 14; d++ {
		day, err := a.store.GetOrCreateContext(ctx, user.ID, start.AddDate(0, 0, d))
		require.NoError(a.t, err)
		workDay := day.Weekday < 5
		require.NoError(a.t, a.store.SetContextFlags(ctx, day.ID, false, workDay, false))

		for _, item := range items[:4] {
			needed := workDay && item.Priority == model.PriorityHigh
			require.NoError(a.t, a.store.UpsertItemStatus(ctx, user.ID, day.ID, item.ID, needed, &needed))
		}
	}
}

func TestTrainAndPredict(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")
	api.seedHistory("alice@example.com")

	resp := api.do(http.MethodPost, "/api/train", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/predict/today", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[struct {
		Source      string             `json:"source"`
		Predictions []model.Prediction `json:"predictions"`
	}](t, resp)
	assert.Equal(t, "personal", payload.Source)
	assert.Len(t, payload.Predictions, 13)
	for _, p := range payload.Predictions {
		assert.GreaterOrEqual(t, p.NeedProbability, 0.0)
		assert.LessOrEqual(t, p.NeedProbability, 1.0)
		assert.InDelta(t, p.NeedProbability*(0.7+0.3*p.ForgetRisk), p.Score, 1e-9)
	}
}

func TestPredict_HeuristicWithoutModel(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/predict/simulate", map[string]any{
		"weekday": 5, "is_holiday": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[struct {
		Source      string             `json:"source"`
		Predictions []model.Prediction `json:"predictions"`
	}](t, resp)
	assert.Equal(t, "heuristic", payload.Source)
	require.NotEmpty(t, payload.Predictions)
	// Heuristic ranks by priority; the list is seeded with high first.
	assert.InDelta(t, 0.7, payload.Predictions[0].NeedProbability, 1e-9)
	assert.InDelta(t, 0.4, payload.Predictions[0].ForgetRisk, 1e-9)
}

func TestPredictSimulate_InvalidWeekday(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodPost, "/api/predict/simulate", map[string]any{"weekday": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	resp := api.do(http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/metrics?scope=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	api.seedHistory("alice@example.com")
	resp = api.do(http.MethodPost, "/api/train", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/metrics?scope=personal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metrics := decode[model.Metrics](t, resp)
	assert.Equal(t, 56, metrics.NSamples)
	assert.GreaterOrEqual(t, metrics.Accuracy, 0.5)
}

func TestInsights(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")
	api.seedHistory("alice@example.com")

	resp := api.do(http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode[map[string]any](t, resp)
	assert.Contains(t, payload, "per_item_stats")
	assert.Contains(t, payload, "top_forgotten")
	assert.Contains(t, payload, "total_labeled")
}

func TestEmailMarkPacked(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	user, err := api.store.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	items, err := api.store.ListItems(context.Background(), user.ID, true)
	require.NoError(t, err)

	date := store.DateKey(time.Now())
	token := auth.MarkPackedToken("test-secret", user.ID, date, items[0].ID)
	path := fmt.Sprintf("/email/mark-packed?user=%d&date=%s&item=%d&token=%s", user.ID, date, items[0].ID, token)

	resp := api.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	day, err := api.store.GetContextByDate(context.Background(), user.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, day)
	statuses, err := api.store.ListItemStatuses(context.Background(), day.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Packed)
	require.NotNil(t, statuses[0].NeededLabel)
	assert.True(t, *statuses[0].NeededLabel)
}

func TestEmailMarkPacked_BadToken(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("alice@example.com")

	path := fmt.Sprintf("/email/mark-packed?user=1&date=%s&item=1&token=forged", store.DateKey(time.Now()))
	resp := api.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
