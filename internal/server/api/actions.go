package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// PluginLookup resolves installed plugins by name.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// ActionHandler binds classes to plugin actions. A class has at most one
// action; it runs on Confirmed and again, as "reset", on release.
type ActionHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewActionHandler creates a new ActionHandler. When plugins is set, a
// binding must name an installed plugin and one of its actions.
func NewActionHandler(s *store.Store, plugins PluginLookup) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/actions and /api/actions/{id}.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/actions"), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w)
	case id == "" && r.Method == http.MethodPost:
		h.create(w, r)
	case id != "" && r.Method == http.MethodGet:
		if action, ok := h.load(w, id); ok {
			writeJSON(w, http.StatusOK, toActionResponse(action))
		}
	case id != "" && r.Method == http.MethodPut:
		h.update(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// actionRequest is the body of POST and PUT. On PUT, empty fields keep
// their stored value.
type actionRequest struct {
	ClassID    string          `json:"class_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type actionResponse struct {
	ID         string          `json:"id"`
	ClassID    string          `json:"class_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

func toActionResponse(a *store.Action) actionResponse {
	resp := actionResponse{
		ID:         a.ID,
		ClassID:    a.ClassID,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     a.Config,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format(timeFormat),
	}
	if len(resp.Config) == 0 {
		resp.Config = json.RawMessage("{}")
	}
	return resp
}

func (h *ActionHandler) list(w http.ResponseWriter) {
	actions, err := h.store.Actions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	resp := listActionsResponse{Actions: make([]actionResponse, len(actions))}
	for i, a := range actions {
		resp.Actions[i] = toActionResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	for field, v := range map[string]string{
		"class_id":    req.ClassID,
		"plugin_name": req.PluginName,
		"action_name": req.ActionName,
	} {
		if v == "" {
			writeError(w, http.StatusBadRequest, field+" is required")
			return
		}
	}

	if !h.bindable(w, req.ClassID) || !h.supported(w, req.PluginName, req.ActionName) {
		return
	}

	action := &store.Action{
		ClassID:    req.ClassID,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Actions().Create(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}

	writeJSON(w, http.StatusCreated, toActionResponse(action))
}

func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	action, ok := h.load(w, id)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ClassID != "" && req.ClassID != action.ClassID {
		if !h.bindable(w, req.ClassID) {
			return
		}
		action.ClassID = req.ClassID
	}

	if req.PluginName != "" || req.ActionName != "" {
		action.PluginName = cmp.Or(req.PluginName, action.PluginName)
		action.ActionName = cmp.Or(req.ActionName, action.ActionName)
		if !h.supported(w, action.PluginName, action.ActionName) {
			return
		}
	}
	if req.Config != nil {
		action.Config = req.Config
	}
	if req.Enabled != nil {
		action.Enabled = *req.Enabled
	}

	if err := h.store.Actions().Update(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

func (h *ActionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Actions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Action not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches an action, writing a 404 when there is none.
func (h *ActionHandler) load(w http.ResponseWriter, id string) (*store.Action, bool) {
	action, err := h.store.Actions().GetByID(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Action not found")
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return nil, false
	}
	return action, true
}

// bindable reports whether classID names an existing class with no action
// yet, writing 400 or 409 otherwise.
func (h *ActionHandler) bindable(w http.ResponseWriter, classID string) bool {
	class, err := h.store.Classes().GetByID(classID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusBadRequest, "Class not found")
		return false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to verify class")
		return false
	}

	bound, err := h.store.Actions().GetByClassName(class.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing action")
		return false
	}
	if bound != nil {
		writeError(w, http.StatusConflict, "Class "+class.Name+" already has an action")
		return false
	}
	return true
}

// supported checks the plugin manifest lists actionName. Without a plugin
// lookup every binding is accepted.
func (h *ActionHandler) supported(w http.ResponseWriter, pluginName, actionName string) bool {
	if h.plugins == nil {
		return true
	}
	p, err := h.plugins.Get(pluginName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Plugin not found")
		return false
	}
	if !p.Manifest.Supports(actionName) {
		writeError(w, http.StatusBadRequest, "Plugin does not support action "+actionName)
		return false
	}
	return true
}
