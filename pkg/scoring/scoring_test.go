package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/prediction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	req := prediction.BuildRequest(models.IntakeRecord{
		Age:       "60-70",
		Visits:    "4",
		Diagnosis: []string{"Diabetes", "Circulatory"},
		Glucose:   "high",
	})
	features, err := Encode(req)
	require.NoError(t, err)
	assert.Len(t, features, len(FeatureNames))
	assert.Equal(t, 6.5, features["age_decade"])
	assert.Equal(t, 4.0, features["time_in_hospital"])
	assert.Equal(t, 1.5, features["n_lab_procedures_10"])
	assert.Equal(t, 1.0, features["diag_1_diabetes"])
	assert.Equal(t, 0.0, features["diag_1_circulatory"])
	assert.Equal(t, 2.0, features["diag_count"])
	assert.Equal(t, 1.0, features["glucose_high"])
	assert.Equal(t, 1.0, features["diabetes_med"])

	_, err = Encode(models.PredictionRequest{Age: "old"})
	assert.Error(t, err)
	_, err = Encode(models.PredictionRequest{Age: "[70-60)"})
	assert.Error(t, err)
	_, err = Encode(models.PredictionRequest{Age: "[70-80)"})
	assert.NoError(t, err)
}

func TestDefaultModelOrdersRisk(t *testing.T) {
	m, err := NewModel("")
	require.NoError(t, err)

	low := prediction.BuildRequest(models.IntakeRecord{Age: "40-50"})
	high := prediction.BuildRequest(models.IntakeRecord{
		Age:             "80-90",
		Visits:          "14",
		Diagnosis:       []string{"Diabetes", "Circulatory", "Respiratory"},
		Glucose:         "high",
		A1C:             "high",
		Medications:     "30",
		PreviousVisits:  "6",
		EmergencyVisits: "4",
	})

	pLow, version, err := m.Score(low)
	require.NoError(t, err)
	assert.Equal(t, "builtin-1", version)
	pHigh, _, err := m.Score(high)
	require.NoError(t, err)

	assert.Less(t, pLow, prediction.ReadmitThreshold)
	assert.Greater(t, pHigh, prediction.ReadmitThreshold)
	assert.Greater(t, pLow, 0.0)
	assert.Less(t, pHigh, 1.0)
}

func writeArtifact(t *testing.T, path string, a Artifact) {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestModelReloadsArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readmission_latest.json")
	a := DefaultArtifact()
	a.Version = "v1"
	writeArtifact(t, path, a)

	m, err := NewModel(path)
	require.NoError(t, err)
	_, version, err := m.Score(prediction.BuildRequest(models.IntakeRecord{Age: "50-60"}))
	require.NoError(t, err)
	assert.Equal(t, "v1", version)

	a.Version = "v2"
	writeArtifact(t, path, a)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	_, version, err = m.Score(prediction.BuildRequest(models.IntakeRecord{Age: "50-60"}))
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
}

func TestNewModelRejectsBadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	a := DefaultArtifact()
	a.Model.Weights.Coefficients = a.Model.Weights.Coefficients[:2]
	writeArtifact(t, path, a)

	_, err := NewModel(path)
	assert.ErrorContains(t, err, "coefficients")

	_, err = NewModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func newScoringServer(t *testing.T, m *Model) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	NewHTTPHandler(m).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAgainstScoringService(t *testing.T) {
	m, err := NewModel("")
	require.NoError(t, err)
	srv := newScoringServer(t, m)
	client := prediction.NewClient(srv.URL, srv.Client())

	req := prediction.BuildRequest(models.IntakeRecord{Name: "Ada", Age: "70-80", Diagnosis: []string{"Respiratory"}})
	resp, err := client.Predict(context.Background(), req)
	require.NoError(t, err)

	res, err := prediction.Derive(resp, req, nil)
	require.NoError(t, err)
	want, _, err := m.Score(req)
	require.NoError(t, err)
	assert.InDelta(t, want, res.Probability, 1e-9)
	assert.True(t, strings.HasSuffix(res.ProbabilityPercent, "%"))

	_, err = client.Predict(context.Background(), models.PredictionRequest{Age: "unknown"})
	var svcErr *prediction.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
	assert.Contains(t, prediction.UserMessage(err), "invalid age bracket")
}

func TestScoringServiceRejectsMalformedBody(t *testing.T) {
	m, err := NewModel("")
	require.NoError(t, err)
	srv := newScoringServer(t, m)

	resp, err := srv.Client().Post(srv.URL+"/predict", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScoringServiceArtifactRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path, DefaultArtifact())
	m, err := NewModel(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	srv := newScoringServer(t, m)
	client := prediction.NewClient(srv.URL, srv.Client())
	_, err = client.Predict(context.Background(), prediction.BuildRequest(models.IntakeRecord{Age: "50-60"}))
	var svcErr *prediction.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusServiceUnavailable, svcErr.StatusCode)
	assert.Equal(t, "Model not available", svcErr.Message)
}
