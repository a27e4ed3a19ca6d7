package prediction

import (
	"strings"

	"github.com/readmit-ai/hrp/pkg/common/models"
)

// Fallbacks applied when a numeric intake field is empty, non-numeric or zero.
const (
	DefaultTimeInHospital = 1
	DefaultLabProcedures  = 15
	DefaultProcedures     = 1
	DefaultMedications    = 10
	DefaultOutpatient     = 0
	DefaultEmergency      = 0
)

// The service expects these regardless of input; their intent is unconfirmed.
const (
	ConstInpatient   = 0
	ConstDiabetesMed = "yes"
)

const (
	defaultDiagnosis = "Other"
	defaultSpecialty = "Missing"
	defaultTest      = "no"
	defaultName      = "Unknown"
)

// BuildRequest maps an intake record to the prediction service schema. It is
// pure: the same record always yields the same request.
func BuildRequest(rec models.IntakeRecord) models.PredictionRequest {
	return models.PredictionRequest{
		Age:              rec.Age,
		TimeInHospital:   intOr(rec.Visits, DefaultTimeInHospital),
		NLabProcedures:   intOr(rec.LabProcedures, DefaultLabProcedures),
		NProcedures:      intOr(rec.Procedures, DefaultProcedures),
		NMedications:     intOr(rec.Medications, DefaultMedications),
		NOutpatient:      intOr(rec.PreviousVisits, DefaultOutpatient),
		NInpatient:       ConstInpatient,
		NEmergency:       intOr(rec.EmergencyVisits, DefaultEmergency),
		MedicalSpecialty: stringOr(rec.MedicalSpecialty, defaultSpecialty),
		Diag1:            diagnosisAt(rec.Diagnosis, 0),
		Diag2:            diagnosisAt(rec.Diagnosis, 1),
		Diag3:            diagnosisAt(rec.Diagnosis, 2),
		GlucoseTest:      stringOr(rec.Glucose, defaultTest),
		A1CTest:          stringOr(rec.A1C, defaultTest),
		Change:           stringOr(rec.MedicationChanges, defaultTest),
		DiabetesMed:      ConstDiabetesMed,
		Name:             stringOr(rec.Name, defaultName),
	}
}

// ParseLeadingInt reads an optionally signed run of decimal digits after leading
// whitespace and ignores whatever follows ("12abc" is 12, "3.9" is 3).
func ParseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		// saturate instead of overflowing on absurd input
		if n < 1<<31 {
			n = n*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func intOr(v models.NumericText, fallback int) int {
	n, ok := ParseLeadingInt(string(v))
	if !ok || n == 0 {
		return fallback
	}
	return n
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func diagnosisAt(diagnosis []string, i int) string {
	if i < len(diagnosis) && diagnosis[i] != "" {
		return diagnosis[i]
	}
	return defaultDiagnosis
}
