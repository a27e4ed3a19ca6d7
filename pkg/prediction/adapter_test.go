package prediction

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestEmptyRecordUsesFallbacks(t *testing.T) {
	got := BuildRequest(models.IntakeRecord{})
	want := models.PredictionRequest{
		Age:              "",
		TimeInHospital:   1,
		NLabProcedures:   15,
		NProcedures:      1,
		NMedications:     10,
		NOutpatient:      0,
		NInpatient:       0,
		NEmergency:       0,
		MedicalSpecialty: "Missing",
		Diag1:            "Other",
		Diag2:            "Other",
		Diag3:            "Other",
		GlucoseTest:      "no",
		A1CTest:          "no",
		Change:           "no",
		DiabetesMed:      "yes",
		Name:             "Unknown",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRequestMapsFields(t *testing.T) {
	rec := models.IntakeRecord{
		Name:              "Ada",
		Gender:            "female",
		Age:               "70-80",
		Visits:            "6",
		Diagnosis:         []string{"Circulatory", "Diabetes"},
		Glucose:           "high",
		A1C:               "normal",
		Medications:       "22",
		LabProcedures:     "48",
		Procedures:        "2",
		PreviousVisits:    "3",
		EmergencyVisits:   "1",
		MedicationChanges: "yes",
		MedicalSpecialty:  "Cardiology",
	}
	got := BuildRequest(rec)
	assert.Equal(t, "70-80", got.Age)
	assert.Equal(t, 6, got.TimeInHospital)
	assert.Equal(t, 48, got.NLabProcedures)
	assert.Equal(t, 2, got.NProcedures)
	assert.Equal(t, 22, got.NMedications)
	assert.Equal(t, 3, got.NOutpatient)
	assert.Equal(t, 1, got.NEmergency)
	assert.Equal(t, "Circulatory", got.Diag1)
	assert.Equal(t, "Diabetes", got.Diag2)
	assert.Equal(t, "Other", got.Diag3)
	assert.Equal(t, "Cardiology", got.MedicalSpecialty)
	assert.Equal(t, "high", got.GlucoseTest)
	assert.Equal(t, "normal", got.A1CTest)
	assert.Equal(t, "yes", got.Change)
	assert.Equal(t, "Ada", got.Name)
}

func TestBuildRequestNonNumericFallbacks(t *testing.T) {
	rec := models.IntakeRecord{
		Visits:          "abc",
		LabProcedures:   "",
		Procedures:      "x1",
		Medications:     "  ",
		PreviousVisits:  "n/a",
		EmergencyVisits: "-",
	}
	got := BuildRequest(rec)
	assert.Equal(t, DefaultTimeInHospital, got.TimeInHospital)
	assert.Equal(t, DefaultLabProcedures, got.NLabProcedures)
	assert.Equal(t, DefaultProcedures, got.NProcedures)
	assert.Equal(t, DefaultMedications, got.NMedications)
	assert.Equal(t, DefaultOutpatient, got.NOutpatient)
	assert.Equal(t, DefaultEmergency, got.NEmergency)
}

func TestBuildRequestConstantsIgnoreInput(t *testing.T) {
	got := BuildRequest(models.IntakeRecord{PreviousVisits: "9", MedicationChanges: "no"})
	assert.Equal(t, ConstInpatient, got.NInpatient)
	assert.Equal(t, ConstDiabetesMed, got.DiabetesMed)
}

func TestBuildRequestIsDeterministic(t *testing.T) {
	rec := models.IntakeRecord{Name: "Ada", Visits: "3", Diagnosis: []string{"Injury"}}
	first := BuildRequest(rec)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, BuildRequest(rec)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
	assert.Equal(t, []string{"Injury"}, rec.Diagnosis)
}

func TestParseLeadingInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"12", 12, true},
		{"  7", 7, true},
		{"12abc", 12, true},
		{"3.9", 3, true},
		{"-2", -2, true},
		{"+5", 5, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
		{".5", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseLeadingInt(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestRequestWireFieldNames(t *testing.T) {
	data, err := json.Marshal(BuildRequest(models.IntakeRecord{}))
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &wire))
	for _, key := range []string{
		"age", "time_in_hospital", "n_lab_procedures", "n_procedures", "n_medications",
		"n_outpatient", "n_inpatient", "n_emergency", "medical_specialty", "diag_1",
		"diag_2", "diag_3", "glucose_test", "A1Ctest", "change", "diabetes_med", "name",
	} {
		assert.Contains(t, wire, key)
	}
	assert.Len(t, wire, 17)
}
