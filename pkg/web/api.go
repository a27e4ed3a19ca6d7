package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/intake"
	"github.com/readmit-ai/hrp/pkg/results"
)

type APIHandler struct {
	visits *results.Registry
}

type PredictionEnvelope struct {
	ID     string                   `json:"id"`
	State  string                   `json:"state"`
	Result *models.PredictionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func NewAPIHandler(visits *results.Registry) *APIHandler {
	return &APIHandler{visits: visits}
}

func (h *APIHandler) Register(router *mux.Router) {
	router.HandleFunc("/predictions", h.handlePredict).Methods(http.MethodPost, http.MethodOptions)
}

// handlePredict runs one results visit to completion for a JSON intake record.
// A client that disconnects cancels the upstream call.
func (h *APIHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var rec models.IntakeRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		logger.Log.WithError(err).Warn("invalid prediction payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(rec.Diagnosis) > intake.MaxDiagnoses {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("at most %d diagnoses allowed", intake.MaxDiagnoses),
		})
		return
	}

	v := h.visits.NewVisit(uuid.New().String(), &rec)
	defer v.Close()
	v.Start(r.Context())
	snap := v.Wait(r.Context())
	if r.Context().Err() != nil {
		return
	}

	status := http.StatusOK
	if snap.State == results.StateError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, PredictionEnvelope{
		ID:     snap.ID,
		State:  snap.State.String(),
		Result: snap.Result,
		Error:  snap.Error,
	})
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
