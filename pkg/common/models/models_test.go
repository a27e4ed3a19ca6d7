package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntakeRecordAcceptsNumbersAndStrings(t *testing.T) {
	var rec IntakeRecord
	err := json.Unmarshal([]byte(`{"visits": 4, "medications": "12", "procedures": null, "lab_procedures": "abc"}`), &rec)
	require.NoError(t, err)
	require.Equal(t, NumericText("4"), rec.Visits)
	require.Equal(t, NumericText("12"), rec.Medications)
	require.Equal(t, NumericText(""), rec.Procedures)
	require.Equal(t, NumericText("abc"), rec.LabProcedures)
}

func TestIntakeRecordRejectsObjectNumeric(t *testing.T) {
	var rec IntakeRecord
	err := json.Unmarshal([]byte(`{"visits": {"a": 1}}`), &rec)
	require.Error(t, err)
}

func TestCloneDoesNotShareDiagnosis(t *testing.T) {
	rec := IntakeRecord{Diagnosis: []string{"Diabetes"}}
	cp := rec.Clone()
	cp.Diagnosis[0] = "Injury"
	require.Equal(t, "Diabetes", rec.Diagnosis[0])
}
