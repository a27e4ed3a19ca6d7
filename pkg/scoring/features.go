// Package scoring is a local implementation of the prediction service contract:
// a logistic model over the encoded request fields.
package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/readmit-ai/hrp/pkg/common/models"
)

// FeatureNames is the encoding order used by the built-in artifact.
var FeatureNames = []string{
	"age_decade",
	"time_in_hospital",
	"n_lab_procedures_10",
	"n_procedures",
	"n_medications_10",
	"n_outpatient",
	"n_inpatient",
	"n_emergency",
	"diag_1_circulatory",
	"diag_1_diabetes",
	"diag_1_respiratory",
	"diag_count",
	"glucose_high",
	"a1c_high",
	"change",
	"diabetes_med",
}

// Encode maps a request onto named numeric features. The age bracket must
// look like "60-70".
func Encode(req models.PredictionRequest) (map[string]float64, error) {
	decade, err := ageDecade(req.Age)
	if err != nil {
		return nil, err
	}

	diagCount := 0
	for _, d := range []string{req.Diag1, req.Diag2, req.Diag3} {
		if d != "" && d != "Other" {
			diagCount++
		}
	}

	return map[string]float64{
		"age_decade":          decade,
		"time_in_hospital":    float64(req.TimeInHospital),
		"n_lab_procedures_10": float64(req.NLabProcedures) / 10,
		"n_procedures":        float64(req.NProcedures),
		"n_medications_10":    float64(req.NMedications) / 10,
		"n_outpatient":        float64(req.NOutpatient),
		"n_inpatient":         float64(req.NInpatient),
		"n_emergency":         float64(req.NEmergency),
		"diag_1_circulatory":  indicator(req.Diag1 == "Circulatory"),
		"diag_1_diabetes":     indicator(req.Diag1 == "Diabetes"),
		"diag_1_respiratory":  indicator(req.Diag1 == "Respiratory"),
		"diag_count":          float64(diagCount),
		"glucose_high":        indicator(req.GlucoseTest == "high"),
		"a1c_high":            indicator(req.A1CTest == "high"),
		"change":              indicator(req.Change == "yes"),
		"diabetes_med":        indicator(req.DiabetesMed == "yes"),
	}, nil
}

func ageDecade(bracket string) (float64, error) {
	lo, hi, ok := strings.Cut(strings.Trim(bracket, "[)"), "-")
	if !ok {
		return 0, fmt.Errorf("invalid age bracket %q", bracket)
	}
	low, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, fmt.Errorf("invalid age bracket %q", bracket)
	}
	high, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || high <= low {
		return 0, fmt.Errorf("invalid age bracket %q", bracket)
	}
	return float64(low+high) / 20, nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
