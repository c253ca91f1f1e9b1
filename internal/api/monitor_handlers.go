package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/config"
	"github.com/probewatch/probewatch/internal/models"
	"github.com/probewatch/probewatch/internal/scheduler"
	"github.com/probewatch/probewatch/internal/store"
)

// MonitorHandlers serves the control surface. Every mutation updates the
// scheduler registry synchronously with the state change that caused it.
type MonitorHandlers struct {
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Config    *config.Config
	Logger    *zap.Logger
}

type monitorRequest struct {
	Name             string                  `json:"name"`
	OrgID            uuid.UUID               `json:"org_id"`
	ProjectID        uuid.UUID               `json:"project_id"`
	CreatedBy        uuid.UUID               `json:"created_by"`
	Type             models.MonitorType      `json:"type"`
	Target           string                  `json:"target"`
	FrequencySeconds int                     `json:"frequency_seconds"`
	Config           json.RawMessage         `json:"config"`
	AlertConfig      *models.AlertConfig     `json:"alert_config"`
	LocationConfig   *models.LocationConfig  `json:"location_config"`
	MutedUntil       *time.Time              `json:"muted_until"`

	// Status accepts only the operator-settable states: pending, paused,
	// maintenance. Up/down/error are computed from results.
	Status models.MonitorStatus `json:"status,omitempty"`
}

// List returns all monitors.
func (h *MonitorHandlers) List(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.Store.ListMonitors(r.Context())
	if err != nil {
		h.fail(w, err, "failed to fetch monitors")
		return
	}
	writeJSON(w, http.StatusOK, monitors)
}

// Get returns one monitor.
func (h *MonitorHandlers) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Create validates and persists a new monitor, then schedules it.
func (h *MonitorHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	m, err := h.buildMonitor(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.CreateMonitor(r.Context(), m); err != nil {
		h.fail(w, err, "failed to create monitor")
		return
	}

	if err := h.Scheduler.Schedule(m); err != nil {
		h.fail(w, err, "monitor saved but scheduling failed")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// Update applies changes to an existing monitor and re-registers its
// recurring entry. The monitor type is immutable.
func (h *MonitorHandlers) Update(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type != "" && req.Type != m.Type {
		http.Error(w, "monitor type is immutable", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		m.Name = req.Name
	}
	if req.Target != "" {
		if err := validateTarget(m.Type, req.Target); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.Target = req.Target
	}
	if req.FrequencySeconds != 0 {
		freq, err := h.normalizeFrequency(req.FrequencySeconds)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.FrequencySeconds = freq
	}
	if len(req.Config) > 0 {
		cfg, err := models.ParseMonitorConfig(m.Type, req.Config)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.Config = cfg
	}
	if req.AlertConfig != nil {
		req.AlertConfig.Normalize()
		m.AlertConfig = *req.AlertConfig
	}
	if req.LocationConfig != nil {
		if err := req.LocationConfig.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.LocationConfig = req.LocationConfig
	}
	if req.Status != "" {
		switch req.Status {
		case models.StatusPending, models.StatusPaused, models.StatusMaintenance:
			m.Status = req.Status
		default:
			http.Error(w, "status can only be set to pending, paused or maintenance", http.StatusBadRequest)
			return
		}
	}
	m.MutedUntil = req.MutedUntil
	m.UpdatedAt = time.Now().UTC()

	if err := h.Store.SaveMonitor(r.Context(), m); err != nil {
		h.fail(w, err, "failed to update monitor")
		return
	}

	if err := h.Scheduler.Schedule(m); err != nil {
		h.fail(w, err, "monitor saved but scheduling failed")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// Delete unschedules and removes a monitor. The registry entry goes first
// so no tick can fire for a deleted row.
func (h *MonitorHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	h.Scheduler.Unschedule(id)

	if err := h.Store.DeleteMonitor(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "monitor not found", http.StatusNotFound)
			return
		}
		h.fail(w, err, "failed to delete monitor")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Results returns recent results for a monitor.
func (h *MonitorHandlers) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.Store.ListResults(r.Context(), id, limit)
	if err != nil {
		h.fail(w, err, "failed to fetch results")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Enable turns a monitor on and schedules it.
func (h *MonitorHandlers) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable turns a monitor off and removes its recurring entry.
func (h *MonitorHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *MonitorHandlers) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	m.Enabled = enabled
	if err := h.Store.UpdateMonitorFields(r.Context(), m.ID, map[string]interface{}{
		"enabled": enabled,
	}); err != nil {
		h.fail(w, err, "failed to update monitor")
		return
	}

	if enabled {
		if err := h.Scheduler.Schedule(m); err != nil {
			h.fail(w, err, "monitor enabled but scheduling failed")
			return
		}
	} else {
		h.Scheduler.Unschedule(m.ID)
	}

	writeJSON(w, http.StatusOK, m)
}

// Pause sets maintenance-free pause state and unschedules.
func (h *MonitorHandlers) Pause(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.Store.UpdateMonitorFields(r.Context(), m.ID, map[string]interface{}{
		"status": models.StatusPaused,
	}); err != nil {
		h.fail(w, err, "failed to pause monitor")
		return
	}
	m.Status = models.StatusPaused

	h.Scheduler.Unschedule(m.ID)
	writeJSON(w, http.StatusOK, m)
}

// Resume returns a paused monitor to the schedule.
func (h *MonitorHandlers) Resume(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.Store.UpdateMonitorFields(r.Context(), m.ID, map[string]interface{}{
		"status": models.StatusPending,
	}); err != nil {
		h.fail(w, err, "failed to resume monitor")
		return
	}
	m.Status = models.StatusPending

	if err := h.Scheduler.Schedule(m); err != nil {
		h.fail(w, err, "monitor resumed but scheduling failed")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// RunNow forces an immediate execution outside the recurring schedule.
func (h *MonitorHandlers) RunNow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.Scheduler.TriggerNow(r.Context(), m.ID); err != nil {
		h.fail(w, err, "failed to trigger run")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *MonitorHandlers) buildMonitor(req *monitorRequest) (*models.Monitor, error) {
	if req.Name == "" {
		return nil, &models.ConfigError{Field: "name", Reason: "name is required"}
	}
	if !req.Type.Valid() {
		return nil, &models.ConfigError{Field: "type", Reason: "unknown monitor type"}
	}
	if err := validateTarget(req.Type, req.Target); err != nil {
		return nil, err
	}

	freq, err := h.normalizeFrequency(req.FrequencySeconds)
	if err != nil {
		return nil, err
	}

	cfg, err := models.ParseMonitorConfig(req.Type, req.Config)
	if err != nil {
		return nil, err
	}

	alertCfg := models.AlertConfig{}
	if req.AlertConfig != nil {
		alertCfg = *req.AlertConfig
	}
	alertCfg.Normalize()

	if req.LocationConfig != nil {
		if err := req.LocationConfig.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	return &models.Monitor{
		ID:               uuid.New(),
		OrgID:            req.OrgID,
		ProjectID:        req.ProjectID,
		CreatedBy:        req.CreatedBy,
		Name:             req.Name,
		Type:             req.Type,
		Target:           req.Target,
		FrequencySeconds: freq,
		Enabled:          true,
		Status:           models.StatusPending,
		Config:           cfg,
		AlertConfig:      alertCfg,
		LocationConfig:   req.LocationConfig,
		MutedUntil:       req.MutedUntil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (h *MonitorHandlers) normalizeFrequency(freq int) (int, error) {
	min := h.Config.MinCheckIntervalSeconds
	if freq == 0 {
		return min, nil
	}
	if freq < min {
		return 0, &models.ConfigError{Field: "frequency_seconds", Reason: "below the minimum check interval"}
	}
	return freq, nil
}

// validateTarget does the save-time syntactic screen; full SSRF screening
// (including DNS resolution) runs again before every network call.
func validateTarget(t models.MonitorType, target string) error {
	if strings.TrimSpace(target) == "" {
		return &models.ConfigError{Field: "target", Reason: "target is required"}
	}

	switch t {
	case models.TypeHTTPRequest, models.TypeWebsite:
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			return &models.ConfigError{Field: "target", Reason: "must be an http or https URL"}
		}
	case models.TypePingHost, models.TypePortCheck:
		if strings.ContainsAny(target, ";|&$><`\\\"' \t") {
			return &models.ConfigError{Field: "target", Reason: "host contains forbidden characters"}
		}
	}
	return nil
}

func (h *MonitorHandlers) load(w http.ResponseWriter, r *http.Request) (*models.Monitor, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}

	m, err := h.Store.GetMonitor(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "monitor not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.fail(w, err, "failed to fetch monitor")
		return nil, false
	}
	return m, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid monitor id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *MonitorHandlers) fail(w http.ResponseWriter, err error, msg string) {
	h.Logger.Error("api_error", zap.String("message", msg), zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
