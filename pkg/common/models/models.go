package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NumericText is a numeric form field kept as the text that was entered, so an
// empty or non-numeric entry survives until the request adapter coerces it.
// JSON accepts either a number or a string.
type NumericText string

func (n *NumericText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*n = NumericText(num.String())
	return nil
}

// Intake
type IntakeRecord struct {
	Name              string      `json:"name"`
	Gender            string      `json:"gender"` // male, female, other
	Age               string      `json:"age"`    // bracket, e.g. "60-70"
	Visits            NumericText `json:"visits"` // length of stay in days
	Diagnosis         []string    `json:"diagnosis"`
	Glucose           string      `json:"glucose"` // high, normal, unknown
	A1C               string      `json:"a1c"`
	Medications       NumericText `json:"medications"`
	LabProcedures     NumericText `json:"lab_procedures"`
	Procedures        NumericText `json:"procedures"`
	PreviousVisits    NumericText `json:"previous_visits"`
	EmergencyVisits   NumericText `json:"emergency_visits"`
	MedicationChanges string      `json:"medication_changes"` // no, yes
	MedicalSpecialty  string      `json:"medical_specialty"`
}

// Clone returns a deep copy so the diagnosis slice is never shared.
func (r IntakeRecord) Clone() IntakeRecord {
	out := r
	if r.Diagnosis != nil {
		out.Diagnosis = append([]string(nil), r.Diagnosis...)
	}
	return out
}

// Prediction service wire models
type PredictionRequest struct {
	Age              string `json:"age"`
	TimeInHospital   int    `json:"time_in_hospital"`
	NLabProcedures   int    `json:"n_lab_procedures"`
	NProcedures      int    `json:"n_procedures"`
	NMedications     int    `json:"n_medications"`
	NOutpatient      int    `json:"n_outpatient"`
	NInpatient       int    `json:"n_inpatient"`
	NEmergency       int    `json:"n_emergency"`
	MedicalSpecialty string `json:"medical_specialty"`
	Diag1            string `json:"diag_1"`
	Diag2            string `json:"diag_2"`
	Diag3            string `json:"diag_3"`
	GlucoseTest      string `json:"glucose_test"`
	A1CTest          string `json:"A1Ctest"`
	Change           string `json:"change"`
	DiabetesMed      string `json:"diabetes_med"`
	Name             string `json:"name"`
}

// PredictionResponse is the decoded service body, passed through verbatim.
type PredictionResponse map[string]interface{}

type PredictionResult struct {
	Response           PredictionResponse `json:"response"`
	Probability        float64            `json:"readmit_probability"`
	WillReadmit        bool               `json:"will_readmit"`
	RiskLevel          string             `json:"risk_level"`
	ProbabilityPercent string             `json:"readmit_probability_percent"`
	Verdict            string             `json:"prediction"`
	PatientName        string             `json:"patient_name"`
	PatientData        PredictionRequest  `json:"patient_data"`
	Recommendations    []string           `json:"recommendations"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
