package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

// Trainer rebuilds the in-memory templates after the class table changes.
type Trainer interface {
	TrainClass(classID string) error
	ForgetClass(name string)
}

// ClassHandler handles HTTP requests for class resources.
//
// Edits to the class table are persisted immediately; the confirmer picks up
// new hand counts on the next start.
type ClassHandler struct {
	store   *store.Store
	trainer Trainer
}

// NewClassHandler creates a new ClassHandler. trainer may be nil.
func NewClassHandler(s *store.Store, trainer Trainer) *ClassHandler {
	return &ClassHandler{store: s, trainer: trainer}
}

// ServeHTTP routes /api/classes and /api/classes/{id}.
func (h *ClassHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/classes")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, path)
	case http.MethodPut:
		h.update(w, r, path)
	case http.MethodDelete:
		h.delete(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type classRequest struct {
	Name          string `json:"name"`
	RequiredHands *int   `json:"required_hands"`
}

type classResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RequiredHands int    `json:"required_hands"`
	Reserved      bool   `json:"reserved"`
	Samples       int    `json:"samples"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type listClassesResponse struct {
	Classes []classResponse `json:"classes"`
}

func toClassResponse(c *store.Class) classResponse {
	return classResponse{
		ID:            c.ID,
		Name:          c.Name,
		RequiredHands: c.RequiredHands,
		Reserved:      c.Reserved,
		Samples:       c.Samples,
		CreatedAt:     c.CreatedAt.Format(timeFormat),
		UpdatedAt:     c.UpdatedAt.Format(timeFormat),
	}
}

// maxHands is the number of hand slots in a feature vector.
const maxHands = detector.FeatureDims / detector.HandDims

func validHands(n int) bool {
	return n >= 0 && n <= maxHands
}

func (h *ClassHandler) list(w http.ResponseWriter, r *http.Request) {
	classes, err := h.store.Classes().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list classes")
		return
	}

	response := listClassesResponse{Classes: make([]classResponse, 0, len(classes))}
	for _, c := range classes {
		response.Classes = append(response.Classes, toClassResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *ClassHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	class, err := h.store.Classes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get class")
		return
	}
	writeJSON(w, http.StatusOK, toClassResponse(class))
}

func (h *ClassHandler) create(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	hands := 1
	if req.RequiredHands != nil {
		hands = *req.RequiredHands
	}
	if !validHands(hands) {
		writeError(w, http.StatusBadRequest, "required_hands must be between 0 and 2")
		return
	}

	if ok := h.nameFree(w, req.Name, ""); !ok {
		return
	}

	class := &store.Class{Name: req.Name, RequiredHands: hands}
	if err := h.store.Classes().Create(class); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create class")
		return
	}
	writeJSON(w, http.StatusCreated, toClassResponse(class))
}

func (h *ClassHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	class, err := h.store.Classes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get class")
		return
	}

	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	oldName := class.Name
	if name := strings.TrimSpace(req.Name); name != "" && name != class.Name {
		if class.Reserved {
			writeError(w, http.StatusConflict, "The reserved class cannot be renamed")
			return
		}
		if ok := h.nameFree(w, name, class.ID); !ok {
			return
		}
		class.Name = name
	}
	if req.RequiredHands != nil {
		if !validHands(*req.RequiredHands) {
			writeError(w, http.StatusBadRequest, "required_hands must be between 0 and 2")
			return
		}
		if class.Reserved && *req.RequiredHands != 0 {
			writeError(w, http.StatusConflict, "The reserved class never requires hands")
			return
		}
		class.RequiredHands = *req.RequiredHands
	}

	if err := h.store.Classes().Update(class); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update class")
		return
	}

	// Templates are keyed by name.
	if h.trainer != nil && oldName != class.Name {
		h.trainer.ForgetClass(oldName)
		if class.Samples > 0 {
			if err := h.trainer.TrainClass(class.ID); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to retrain class")
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, toClassResponse(class))
}

func (h *ClassHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	class, err := h.store.Classes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get class")
		return
	}
	if class.Reserved {
		writeError(w, http.StatusConflict, "The reserved class cannot be deleted")
		return
	}

	if err := h.store.Classes().Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete class")
		return
	}
	if h.trainer != nil {
		h.trainer.ForgetClass(class.Name)
	}

	w.WriteHeader(http.StatusNoContent)
}

// nameFree writes a conflict and returns false when another class already
// uses name.
func (h *ClassHandler) nameFree(w http.ResponseWriter, name, selfID string) bool {
	existing, err := h.store.Classes().GetByName(name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return true
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to check class name")
		return false
	case existing.ID != selfID:
		writeError(w, http.StatusConflict, "A class with this name already exists")
		return false
	}
	return true
}
