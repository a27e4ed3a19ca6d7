package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/readmit-ai/hrp/pkg/common/models"
)

const (
	ReadmitThreshold = 0.5

	RiskHigh = "High Risk"
	RiskLow  = "Low Risk"

	VerdictReadmit   = "WILL readmit"
	VerdictNoReadmit = "WILL NOT readmit"

	ProbabilityField = "readmit_probability"
)

var ErrMissingProbability = errors.New("prediction response has no numeric readmit_probability")

// Derive turns a service response into the displayed result. recommend picks the
// static recommendation list for the verdict.
func Derive(resp models.PredictionResponse, req models.PredictionRequest, recommend func(willReadmit bool) []string) (models.PredictionResult, error) {
	prob, err := Probability(resp)
	if err != nil {
		return models.PredictionResult{}, err
	}
	will := prob >= ReadmitThreshold

	result := models.PredictionResult{
		Response:           resp,
		Probability:        prob,
		WillReadmit:        will,
		RiskLevel:          RiskLow,
		ProbabilityPercent: FormatPercent(prob),
		Verdict:            VerdictNoReadmit,
		PatientName:        req.Name,
		PatientData:        req,
	}
	if will {
		result.RiskLevel = RiskHigh
		result.Verdict = VerdictReadmit
	}
	if recommend != nil {
		result.Recommendations = recommend(will)
	}
	return result, nil
}

// Probability extracts readmit_probability from a number, json.Number or
// numeric string.
func Probability(resp models.PredictionResponse) (float64, error) {
	raw, ok := resp[ProbabilityField]
	if !ok || raw == nil {
		return 0, ErrMissingProbability
	}
	var prob float64
	switch v := raw.(type) {
	case float64:
		prob = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMissingProbability, err)
		}
		prob = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMissingProbability, err)
		}
		prob = f
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrMissingProbability, raw)
	}
	if math.IsNaN(prob) || math.IsInf(prob, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrMissingProbability)
	}
	return prob, nil
}

// FormatPercent renders a 0..1 probability with two decimals, e.g. "73.00%".
func FormatPercent(prob float64) string {
	return strconv.FormatFloat(prob*100, 'f', 2, 64) + "%"
}
