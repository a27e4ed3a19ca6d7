package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/readmit-ai/hrp/pkg/common/models"
)

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Artifact struct {
	Version string `json:"version"`
	Model   struct {
		Algorithm    string   `json:"algorithm"`
		FeatureNames []string `json:"feature_names"`
		Weights      Weights  `json:"weights"`
	} `json:"model"`
}

// Validate checks the artifact can score encoded requests.
func (a Artifact) Validate() error {
	if len(a.Model.FeatureNames) == 0 {
		return fmt.Errorf("artifact missing feature names")
	}
	if len(a.Model.FeatureNames) != len(a.Model.Weights.Coefficients) {
		return fmt.Errorf("artifact has %d features but %d coefficients",
			len(a.Model.FeatureNames), len(a.Model.Weights.Coefficients))
	}
	return nil
}

// DefaultArtifact is a hand-tuned model used when no artifact file is configured.
func DefaultArtifact() Artifact {
	var a Artifact
	a.Version = "builtin-1"
	a.Model.Algorithm = "logistic"
	a.Model.FeatureNames = append([]string(nil), FeatureNames...)
	a.Model.Weights = Weights{
		Bias: -3.2,
		Coefficients: []float64{
			0.15,  // age_decade
			0.06,  // time_in_hospital
			0.05,  // n_lab_procedures_10
			-0.04, // n_procedures
			0.10,  // n_medications_10
			0.12,  // n_outpatient
			0.40,  // n_inpatient
			0.30,  // n_emergency
			0.20,  // diag_1_circulatory
			0.30,  // diag_1_diabetes
			0.20,  // diag_1_respiratory
			0.10,  // diag_count
			0.20,  // glucose_high
			0.10,  // a1c_high
			0.15,  // change
			0.20,  // diabetes_med
		},
	}
	return a
}

// Model scores requests with the artifact at path, reloading it when the file
// changes. An empty path uses DefaultArtifact.
type Model struct {
	path string

	mu      sync.RWMutex
	cached  Artifact
	modTime int64
}

func NewModel(path string) (*Model, error) {
	m := &Model{path: path}
	if path == "" {
		m.cached = DefaultArtifact()
		return m, nil
	}
	if _, err := m.artifact(); err != nil {
		return nil, err
	}
	return m, nil
}

// Score returns the readmission probability and the artifact version used.
func (m *Model) Score(req models.PredictionRequest) (float64, string, error) {
	artifact, err := m.artifact()
	if err != nil {
		return 0, "", err
	}
	features, err := Encode(req)
	if err != nil {
		return 0, "", err
	}

	sample := make([]float64, len(artifact.Model.FeatureNames))
	for idx, name := range artifact.Model.FeatureNames {
		value, ok := features[name]
		if !ok {
			return 0, "", fmt.Errorf("missing feature %s", name)
		}
		sample[idx] = value
	}
	return Predict(artifact.Model.Weights, sample), artifact.Version, nil
}

func (m *Model) artifact() (Artifact, error) {
	if m.path == "" {
		return m.cached, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return Artifact{}, err
	}
	mod := info.ModTime().UnixNano()

	m.mu.RLock()
	cached, cachedMod := m.cached, m.modTime
	m.mu.RUnlock()
	if cachedMod == mod {
		return cached, nil
	}

	content, err := os.ReadFile(m.path)
	if err != nil {
		return Artifact{}, err
	}
	var artifact Artifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact %s: %w", m.path, err)
	}
	if err := artifact.Validate(); err != nil {
		return Artifact{}, err
	}

	m.mu.Lock()
	m.cached, m.modTime = artifact, mod
	m.mu.Unlock()
	return artifact, nil
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(sample); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
