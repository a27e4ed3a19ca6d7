package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/common/requestid"
)

// FallbackMessage is shown when a failure carries no service-provided text.
const FallbackMessage = "Failed to get prediction"

const maxResponseBytes = 1 << 20

// ServiceError is a failure reported by the prediction service itself, either a
// non-2xx status or an error payload.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prediction service error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("prediction service returned status %d", e.StatusCode)
}

// UserMessage picks the text shown on the error view: the service's own error
// string when there is one, the generic fallback otherwise.
func UserMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}
	return FallbackMessage
}

// Predictor issues one prediction request.
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionResponse, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionResponse, error) {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if id := requestid.From(ctx); id != "" {
		httpReq.Header.Set(requestid.Header, id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction response: %w", err)
	}

	var payload models.PredictionResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	decodeErr := dec.Decode(&payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: errorText(payload)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", decodeErr)
	}
	if msg := errorText(payload); msg != "" {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}

	logger.Log.WithFields(map[string]interface{}{
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
		"request_id": requestid.From(ctx),
	}).Info("Prediction service responded")

	return payload, nil
}

func errorText(payload models.PredictionResponse) string {
	if payload == nil {
		return ""
	}
	msg, _ := payload["error"].(string)
	return msg
}
