package scoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/common/requestid"
)

type HTTPHandler struct {
	model *Model
}

func NewHTTPHandler(model *Model) *HTTPHandler {
	return &HTTPHandler{model: model}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
		return
	}

	prob, version, err := h.model.Score(req)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			logger.Log.WithError(err).Error("Model artifact unavailable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": "Model not available"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	logger.Log.WithFields(map[string]interface{}{
		"request_id":    requestid.From(r.Context()),
		"model_version": version,
		"latency_ms":    time.Since(start).Milliseconds(),
	}).Info("Prediction completed")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readmit_probability": prob,
		"model_version":       version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
