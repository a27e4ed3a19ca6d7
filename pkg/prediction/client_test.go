package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/common/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPostsJSON(t *testing.T) {
	var (
		gotMethod, gotPath, gotType, gotReqID string
		gotBody                               map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotReqID = r.Header.Get("X-Request-ID")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"readmit_probability": 0.73, "top_factors": ["n_inpatient"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())
	ctx := requestid.With(context.Background(), "req-1")
	resp, err := client.Predict(ctx, BuildRequest(models.IntakeRecord{Name: "Ada"}))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/predict", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "req-1", gotReqID)
	assert.Equal(t, "Ada", gotBody["name"])
	assert.Equal(t, "yes", gotBody["diabetes_med"])
	assert.EqualValues(t, 0, gotBody["n_inpatient"])

	prob, err := Probability(resp)
	require.NoError(t, err)
	assert.InDelta(t, 0.73, prob, 1e-9)
	assert.Equal(t, []interface{}{"n_inpatient"}, resp["top_factors"])
}

func TestClientServiceErrorWithMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "age bracket not recognised"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Predict(context.Background(), models.PredictionRequest{})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "age bracket not recognised", UserMessage(err))
}

func TestClientServiceErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Predict(context.Background(), models.PredictionRequest{})
	require.Error(t, err)
	assert.Equal(t, FallbackMessage, UserMessage(err))
}

func TestClientErrorPayloadOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "model not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Predict(context.Background(), models.PredictionRequest{})
	assert.Equal(t, "model not loaded", UserMessage(err))
}

func TestClientMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Predict(context.Background(), models.PredictionRequest{})
	require.Error(t, err)
	assert.Equal(t, FallbackMessage, UserMessage(err))
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Predict(context.Background(), models.PredictionRequest{})
	require.Error(t, err)
	assert.Equal(t, FallbackMessage, UserMessage(err))
}

func TestClientCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, srv.Client()).Predict(ctx, models.PredictionRequest{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestUserMessageIgnoresBlankServiceText(t *testing.T) {
	assert.Equal(t, FallbackMessage, UserMessage(&ServiceError{StatusCode: 502, Message: "  "}))
	assert.Equal(t, FallbackMessage, UserMessage(errors.New("dial tcp: refused")))
}
