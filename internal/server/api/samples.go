package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

// SamplesHandler handles the recorded samples of a class.
type SamplesHandler struct {
	store   *store.Store
	trainer Trainer
}

// NewSamplesHandler creates a new SamplesHandler. When trainer is set,
// posting samples retrains the class.
func NewSamplesHandler(s *store.Store, trainer Trainer) *SamplesHandler {
	return &SamplesHandler{store: s, trainer: trainer}
}

// ServeHTTP handles /api/classes/{id}/samples.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/classes/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[0] == "" || parts[1] != "samples" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	classID := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, classID)
	case http.MethodPost:
		h.replace(w, r, classID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type replaceSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	ClassID     string          `json:"class_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type replaceSamplesResponse struct {
	Status  string `json:"status"`
	Samples int    `json:"samples"`
	Trained bool   `json:"trained"`
}

func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request, classID string) {
	if _, err := h.store.Classes().GetByID(classID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify class")
		return
	}

	samples, err := h.store.Samples().GetByClassID(classID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			ClassID:     s.ClassID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   s.CreatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// replace swaps the stored samples of a class and retrains its template.
func (h *SamplesHandler) replace(w http.ResponseWriter, r *http.Request, classID string) {
	class, err := h.store.Classes().GetByID(classID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify class")
		return
	}

	var req replaceSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}
	if err := validateSamples(req.Samples, class.RequiredHands); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Samples().Replace(classID, req.Samples); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}

	response := replaceSamplesResponse{Status: "ok", Samples: len(req.Samples)}
	if h.trainer != nil {
		if err := h.trainer.TrainClass(classID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to train class")
			return
		}
		response.Trained = true
	}
	writeJSON(w, http.StatusCreated, response)
}

// validateSamples checks every sample has a full feature vector and, when
// requiredHands is set, was recorded with that many hands.
func validateSamples(raw []json.RawMessage, requiredHands int) error {
	samples, err := classifier.DecodeSamples(raw)
	if err != nil {
		return err
	}
	for i, s := range samples {
		if len(s.Features) != detector.FeatureDims {
			return fmt.Errorf("sample %d has %d features, want %d", i, len(s.Features), detector.FeatureDims)
		}
		if requiredHands > 0 && s.Hands != requiredHands {
			return fmt.Errorf("sample %d has %d hands, class needs %d", i, s.Hands, requiredHands)
		}
	}
	return nil
}
