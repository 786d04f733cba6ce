package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/artifact"
	"github.com/sells-group/packmind/internal/auth"
	"github.com/sells-group/packmind/internal/importer"
	"github.com/sells-group/packmind/internal/insights"
	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Accounts

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(w, err)
		return
	}
	user, err := s.store.CreateUser(r.Context(), req.Email, hash)
	if err == store.ErrEmailTaken {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	if _, err := importer.SeedDefaultItems(r.Context(), s.store, user.ID); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Older accounts pick up items added to the default set since they
	// registered.
	if _, err := importer.SeedDefaultItems(r.Context(), s.store, user.ID); err != nil {
		s.internalError(w, err)
		return
	}

	token := s.sessions.Create(user.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Destroy(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Items

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context(), currentUserID(r), false)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

type itemRequest struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
	Category string `json:"category"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Priority == "" {
		req.Priority = string(model.PriorityMedium)
	}
	if req.Category == "" {
		req.Category = "general"
	}

	userID := currentUserID(r)
	existing, err := s.store.GetItemByName(r.Context(), userID, req.Name)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "item already exists")
		return
	}

	item, err := s.store.CreateItem(r.Context(), model.Item{
		UserID:   userID,
		Name:     req.Name,
		Priority: model.Priority(strings.ToLower(req.Priority)),
		Category: req.Category,
		Active:   true,
	})
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type itemPatch struct {
	Name     *string `json:"name"`
	Priority *string `json:"priority"`
	Category *string `json:"category"`
	Active   *bool   `json:"active"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var patch itemPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	userID := currentUserID(r)
	items, err := s.store.ListItems(r.Context(), userID, false)
	if err != nil {
		s.internalError(w, err)
		return
	}
	var item *model.Item
	for i := range items {
		if items[i].ID == itemID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Priority != nil {
		item.Priority = model.Priority(strings.ToLower(*patch.Priority))
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Active != nil {
		item.Active = *patch.Active
	}

	if err := s.store.UpdateItem(r.Context(), *item); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Checklist

type checklistEntry struct {
	ItemID      int64          `json:"item_id"`
	Name        string         `json:"name"`
	Priority    model.Priority `json:"priority"`
	Packed      bool           `json:"packed"`
	NeededLabel *bool          `json:"needed_label"`
}

func (s *Server) handleChecklistToday(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	dayCtx, err := s.store.GetOrCreateContext(r.Context(), userID, time.Now())
	if err != nil {
		s.internalError(w, err)
		return
	}
	items, err := s.store.ListItems(r.Context(), userID, true)
	if err != nil {
		s.internalError(w, err)
		return
	}
	statuses, err := s.store.ListItemStatuses(r.Context(), dayCtx.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}

	byItem := make(map[int64]model.ItemStatus, len(statuses))
	for _, st := range statuses {
		byItem[st.ItemID] = st
	}

	checklist := make([]checklistEntry, len(items))
	for i, item := range items {
		entry := checklistEntry{ItemID: item.ID, Name: item.Name, Priority: item.Priority}
		if st, ok := byItem[item.ID]; ok {
			entry.Packed = st.Packed
			entry.NeededLabel = st.NeededLabel
		}
		checklist[i] = entry
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":    store.DateKey(dayCtx.Date),
		"weekday": dayCtx.Weekday,
		"items":   checklist,
	})
}

type checklistUpdateRequest struct {
	Statuses []struct {
		ItemID      int64 `json:"item_id"`
		Packed      bool  `json:"packed"`
		NeededLabel *bool `json:"needed_label"`
	} `json:"statuses"`
}

func (s *Server) handleChecklistUpdate(w http.ResponseWriter, r *http.Request) {
	var req checklistUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := currentUserID(r)
	dayCtx, err := s.store.GetOrCreateContext(r.Context(), userID, time.Now())
	if err != nil {
		s.internalError(w, err)
		return
	}
	for _, st := range req.Statuses {
		if err := s.store.UpsertItemStatus(r.Context(), userID, dayCtx.ID, st.ItemID, st.Packed, st.NeededLabel); err != nil {
			s.internalError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Training

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	trained, err := s.trainer.TrainUser(r.Context(), currentUserID(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !trained {
		writeError(w, http.StatusBadRequest, "not enough data to train model")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "trained"})
}

func (s *Server) handleTrainGlobal(w http.ResponseWriter, r *http.Request) {
	trained, err := s.trainer.TrainGlobal(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !trained {
		writeError(w, http.StatusBadRequest, "not enough data to train model")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "trained"})
}

// Prediction

func (s *Server) predict(w http.ResponseWriter, r *http.Request, features model.ContextFeatures) (source string, predictions []model.Prediction, ok bool) {
	userID := currentUserID(r)
	items, err := s.store.ListItems(r.Context(), userID, true)
	if err != nil {
		s.internalError(w, err)
		return "", nil, false
	}
	strategy, err := s.predictor.Resolve(userID)
	if err != nil {
		s.internalError(w, err)
		return "", nil, false
	}
	predictions = strategy.Predict(features, items)
	if predictions == nil {
		predictions = []model.Prediction{}
	}
	return string(strategy.Source), predictions, true
}

func (s *Server) handlePredictToday(w http.ResponseWriter, r *http.Request) {
	dayCtx, err := s.store.GetOrCreateContext(r.Context(), currentUserID(r), time.Now())
	if err != nil {
		s.internalError(w, err)
		return
	}
	source, predictions, ok := s.predict(w, r, dayCtx.Features())
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":        store.DateKey(dayCtx.Date),
		"source":      source,
		"predictions": predictions,
	})
}

type simulateRequest struct {
	Weekday      int  `json:"weekday"`
	IsHoliday    bool `json:"is_holiday"`
	HasWorkEvent bool `json:"has_work_event"`
	HasGymEvent  bool `json:"has_gym_event"`
}

func (s *Server) handlePredictSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeError(w, http.StatusBadRequest, "weekday must be 0..6")
		return
	}

	features := model.ContextFeatures{
		Weekday:      req.Weekday,
		IsHoliday:    boolToInt(req.IsHoliday),
		HasWorkEvent: boolToInt(req.HasWorkEvent),
		HasGymEvent:  boolToInt(req.HasGymEvent),
	}
	source, predictions, ok := s.predict(w, r, features)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":      source,
		"predictions": predictions,
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Insights and metrics

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	history, err := s.store.ListStatusHistory(r.Context(), userID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	report := insights.Build(history)

	today, err := s.store.GetContextByDate(r.Context(), userID, time.Now())
	if err != nil {
		s.internalError(w, err)
		return
	}

	payload := map[string]any{
		"per_item_stats": report.Items,
		"top_forgotten":  report.TopForgotten,
		"total_labeled":  report.TotalLabeled,
	}
	if today != nil {
		payload["today_context"] = insights.Summarize(today)
	}
	if metrics, ok, err := s.artifacts.LoadMetrics(artifact.ScopeUser(userID)); err == nil && ok {
		payload["model_metrics"] = metrics
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	scope := artifact.ScopeUser(currentUserID(r))
	switch r.URL.Query().Get("scope") {
	case "", "personal":
	case "global":
		scope = artifact.ScopeGlobal()
	default:
		writeError(w, http.StatusBadRequest, "scope must be personal or global")
		return
	}

	metrics, ok, err := s.artifacts.LoadMetrics(scope)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no metrics")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// Email action

func (s *Server) handleEmailMarkPacked(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("user"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user")
		return
	}
	itemID, err := strconv.ParseInt(q.Get("item"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item")
		return
	}
	date := q.Get("date")
	if !auth.VerifyMarkPackedToken(s.secret, userID, date, itemID, q.Get("token")) {
		writeError(w, http.StatusForbidden, "invalid or expired link")
		return
	}
	day, err := store.ParseDateKey(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	dayCtx, err := s.store.GetOrCreateContext(r.Context(), userID, day)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if err := s.store.MarkPacked(r.Context(), userID, dayCtx.ID, itemID); err != nil {
		s.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><p>Marked as packed. You can close this tab.</p></body></html>"))
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
