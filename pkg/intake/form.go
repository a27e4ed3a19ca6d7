package intake

import (
	"context"
	"fmt"
	"net/url"

	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/handoff"
)

// MaxDiagnoses caps the diagnosis selection; the first entry is the primary one.
const MaxDiagnoses = 3

const DiagnosisField = "diagnosis"

// Fields lists the scalar form fields accepted by Set, in form order.
var Fields = []string{
	"name",
	"gender",
	"age",
	"visits",
	"glucose",
	"a1c",
	"medical_specialty",
	"medications",
	"lab_procedures",
	"procedures",
	"previous_visits",
	"emergency_visits",
	"medication_changes",
}

type UnknownFieldError struct {
	Field string
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown intake field %q", e.Field)
}

// Form is the editable intake record owned by one intake page.
type Form struct {
	record models.IntakeRecord
}

func NewForm() *Form {
	return &Form{record: models.IntakeRecord{
		Visits:            "1",
		Diagnosis:         []string{},
		MedicationChanges: "no",
		MedicalSpecialty:  "Missing",
	}}
}

// FromValues rebuilds a form from posted values. Diagnoses are kept in posted
// order, duplicates dropped, and anything past the cap ignored.
func FromValues(values url.Values) *Form {
	f := NewForm()
	for _, field := range Fields {
		if v, ok := values[field]; ok && len(v) > 0 {
			// every name in Fields is settable
			_ = f.Set(field, v[0])
		}
	}
	for _, d := range values[DiagnosisField] {
		if d == "" || f.HasDiagnosis(d) || len(f.record.Diagnosis) >= MaxDiagnoses {
			continue
		}
		f.record.Diagnosis = append(f.record.Diagnosis, d)
	}
	return f
}

// Set overwrites a single field by its form name.
func (f *Form) Set(field, value string) error {
	r := &f.record
	switch field {
	case "name":
		r.Name = value
	case "gender":
		r.Gender = value
	case "age":
		r.Age = value
	case "visits":
		r.Visits = models.NumericText(value)
	case "glucose":
		r.Glucose = value
	case "a1c":
		r.A1C = value
	case "medical_specialty":
		r.MedicalSpecialty = value
	case "medications":
		r.Medications = models.NumericText(value)
	case "lab_procedures":
		r.LabProcedures = models.NumericText(value)
	case "procedures":
		r.Procedures = models.NumericText(value)
	case "previous_visits":
		r.PreviousVisits = models.NumericText(value)
	case "emergency_visits":
		r.EmergencyVisits = models.NumericText(value)
	case "medication_changes":
		r.MedicationChanges = value
	default:
		return UnknownFieldError{Field: field}
	}
	return nil
}

// ToggleDiagnosis removes label when selected, otherwise appends it if the cap
// allows. It reports whether the selection changed.
func (f *Form) ToggleDiagnosis(label string) bool {
	for i, d := range f.record.Diagnosis {
		if d == label {
			f.record.Diagnosis = append(f.record.Diagnosis[:i:i], f.record.Diagnosis[i+1:]...)
			return true
		}
	}
	if len(f.record.Diagnosis) >= MaxDiagnoses {
		return false
	}
	f.record.Diagnosis = append(f.record.Diagnosis, label)
	return true
}

func (f *Form) HasDiagnosis(label string) bool {
	for _, d := range f.record.Diagnosis {
		if d == label {
			return true
		}
	}
	return false
}

// DiagnosisFull reports whether unselected diagnoses can no longer be added.
func (f *Form) DiagnosisFull() bool {
	return len(f.record.Diagnosis) >= MaxDiagnoses
}

// Record returns a copy of the current record.
func (f *Form) Record() models.IntakeRecord {
	return f.record.Clone()
}

// Submit hands the record to the results page through the handoff store.
func (f *Form) Submit(ctx context.Context, store handoff.Store) (string, error) {
	id, err := store.Put(ctx, f.Record())
	if err != nil {
		return "", fmt.Errorf("failed to hand off intake record: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"handoff_id": id,
		"diagnoses":  len(f.record.Diagnosis),
	}).Info("Intake submitted")
	return id, nil
}
