/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sentinela-io/sentinela/internal/loader"
	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
)

// Handlers implements the thin translation layer spec.md §6 describes:
// admin endpoints either read the Store directly or enqueue a Queue
// message, and never apply a state transition themselves (that's the
// Executor's job, internal/executor).
type Handlers struct {
	store            store.Store
	loader           loader.Loader
	registry         monitor.Registry
	queue            queue.Queue
	controllerStatus ControllerStatus
	executorStatus   ExecutorStatus
}

// NewHandlers creates the request handler set. controllerStatus/executorStatus
// may be nil when that role isn't co-resident in this process.
func NewHandlers(s store.Store, l loader.Loader, registry monitor.Registry, q queue.Queue, controllerStatus ControllerStatus, executorStatus ExecutorStatus) *Handlers {
	return &Handlers{
		store:            s,
		loader:           l,
		registry:         registry,
		queue:            q,
		controllerStatus: controllerStatus,
		executorStatus:   executorStatus,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, reasons []string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: message, Error: reasons})
}

// GetStatus implements GET / and GET /status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:         "ok",
		MonitorsLoaded: h.registry.Names(),
	}

	if h.controllerStatus != nil {
		resp.Components.Controller = h.controllerStatus.Status()
	} else {
		resp.Components.Controller = ComponentStatus{Status: "unknown"}
	}
	if h.executorStatus != nil {
		resp.Components.Executor = h.executorStatus.Status()
	} else {
		resp.Components.Executor = ComponentStatus{Status: "unknown"}
	}

	if resp.Components.Controller.Status == "degraded" || resp.Components.Executor.Status == "degraded" {
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListMonitors implements GET /monitor/list.
func (h *Handlers) ListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.store.ListMonitors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list monitors", nil)
		return
	}

	items := make([]MonitorListItem, len(monitors))
	for i, m := range monitors {
		items[i] = MonitorListItem{ID: m.ID, Name: m.Name, Enabled: m.Enabled}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetMonitor implements GET /monitor/{name}.
func (h *Handlers) GetMonitor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	m, err := h.store.GetMonitorByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up monitor", nil)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "monitor not found", nil)
		return
	}

	cm, err := h.store.GetCodeModule(r.Context(), m.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load code module", nil)
		return
	}

	resp := MonitorDetailResponse{ID: m.ID, Name: m.Name, Enabled: m.Enabled}
	if cm != nil {
		resp.Code = cm.Code
		resp.AdditionalFiles = cm.AdditionalFiles
	}
	writeJSON(w, http.StatusOK, resp)
}

// ValidateMonitor implements POST /monitor/validate.
func (h *Handlers) ValidateMonitor(w http.ResponseWriter, r *http.Request) {
	var req MonitorValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
		return
	}

	if err := h.loader.CheckMonitor(req.Name, req.MonitorCode); err != nil {
		var verr *monitor.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "monitor validation failed", verr.Reasons)
			return
		}
		writeError(w, http.StatusBadRequest, "monitor validation failed", []string{err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, SimpleStatusResponse{Status: "ok"})
}

// RegisterMonitor implements POST /monitor/register/{name}.
func (h *Handlers) RegisterMonitor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req MonitorRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
		return
	}

	m, err := h.loader.RegisterMonitor(r.Context(), name, req.MonitorCode, req.AdditionalFiles)
	if err != nil {
		var verr *monitor.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "monitor validation failed", verr.Reasons)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register monitor", nil)
		return
	}

	writeJSON(w, http.StatusOK, MonitorRegisteredResponse{Status: "monitor_registered", MonitorID: m.ID})
}

// EnableMonitor implements POST /monitor/{name}/enable.
func (h *Handlers) EnableMonitor(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableMonitor implements POST /monitor/{name}/disable.
func (h *Handlers) DisableMonitor(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handlers) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := chi.URLParam(r, "name")

	m, err := h.store.GetMonitorByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up monitor", nil)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "monitor not found", nil)
		return
	}

	if err := h.store.SetMonitorEnabled(r.Context(), m.ID, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update monitor", nil)
		return
	}

	writeJSON(w, http.StatusOK, SimpleStatusResponse{Status: "ok"})
}

// AlertAcknowledge implements POST /alert/{id}/acknowledge.
func (h *Handlers) AlertAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.enqueueAlertAction(w, r, queue.ActionAlertAcknowledge)
}

// AlertLock implements POST /alert/{id}/lock.
func (h *Handlers) AlertLock(w http.ResponseWriter, r *http.Request) {
	h.enqueueAlertAction(w, r, queue.ActionAlertLock)
}

// AlertSolve implements POST /alert/{id}/solve.
func (h *Handlers) AlertSolve(w http.ResponseWriter, r *http.Request) {
	h.enqueueAlertAction(w, r, queue.ActionAlertSolve)
}

func (h *Handlers) enqueueAlertAction(w http.ResponseWriter, r *http.Request, action string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id", nil)
		return
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up alert", nil)
		return
	}
	if alert == nil {
		writeError(w, http.StatusNotFound, "alert not found", nil)
		return
	}

	h.enqueueRequest(w, r, action, id)
}

// IssueDrop implements POST /issue/{id}/drop.
func (h *Handlers) IssueDrop(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue id", nil)
		return
	}

	issue, err := h.store.GetIssue(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up issue", nil)
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found", nil)
		return
	}

	h.enqueueRequest(w, r, queue.ActionIssueDrop, id)
}

func (h *Handlers) enqueueRequest(w http.ResponseWriter, r *http.Request, action string, targetID int64) {
	payload := queue.RequestPayload{
		Action: action,
		Params: map[string]any{"target_id": targetID},
	}
	if err := h.queue.SendMessage(r.Context(), queue.TypeRequest, payload); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue request", nil)
		return
	}

	writeJSON(w, http.StatusOK, RequestQueuedResponse{Status: "request_queued", Action: action, TargetID: targetID})
}
