package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type Recommendations struct {
	HighRisk []string `yaml:"high_risk" json:"high_risk"`
	LowRisk  []string `yaml:"low_risk" json:"low_risk"`
}

// Catalog holds the intake option lists and the static recommendation text.
type Catalog struct {
	Genders         []Option        `yaml:"genders" json:"genders"`
	AgeBrackets     []string        `yaml:"age_brackets" json:"age_brackets"`
	Diagnoses       []string        `yaml:"diagnoses" json:"diagnoses"`
	TestLevels      []Option        `yaml:"test_levels" json:"test_levels"`
	Specialties     []string        `yaml:"specialties" json:"specialties"`
	Recommendations Recommendations `yaml:"recommendations" json:"recommendations"`
}

// Load reads a YAML catalog. Sections missing from the file keep their defaults.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	cat.fillDefaults()
	return cat, nil
}

func (c *Catalog) fillDefaults() {
	def := DefaultCatalog()
	if len(c.Genders) == 0 {
		c.Genders = def.Genders
	}
	if len(c.AgeBrackets) == 0 {
		c.AgeBrackets = def.AgeBrackets
	}
	if len(c.Diagnoses) == 0 {
		c.Diagnoses = def.Diagnoses
	}
	if len(c.TestLevels) == 0 {
		c.TestLevels = def.TestLevels
	}
	if len(c.Specialties) == 0 {
		c.Specialties = def.Specialties
	}
	if len(c.Recommendations.HighRisk) == 0 {
		c.Recommendations.HighRisk = def.Recommendations.HighRisk
	}
	if len(c.Recommendations.LowRisk) == 0 {
		c.Recommendations.LowRisk = def.Recommendations.LowRisk
	}
}

// RecommendationsFor is a fixed two-way lookup on the readmission verdict.
func (c Catalog) RecommendationsFor(willReadmit bool) []string {
	src := c.Recommendations.LowRisk
	if willReadmit {
		src = c.Recommendations.HighRisk
	}
	return append([]string(nil), src...)
}

func (c Catalog) IsDiagnosis(label string) bool {
	for _, d := range c.Diagnoses {
		if d == label {
			return true
		}
	}
	return false
}

func DefaultCatalog() Catalog {
	return Catalog{
		Genders: []Option{
			{Value: "male", Label: "Male"},
			{Value: "female", Label: "Female"},
			{Value: "other", Label: "Other"},
		},
		AgeBrackets: []string{"40-50", "50-60", "60-70", "70-80", "80-90", "90-100"},
		Diagnoses: []string{
			"Circulatory",
			"Diabetes",
			"Digestive",
			"Injury",
			"Musculoskeletal",
			"Respiratory",
			"Other",
		},
		TestLevels: []Option{
			{Value: "high", Label: "High"},
			{Value: "normal", Label: "Normal"},
			{Value: "unknown", Label: "Unknown"},
		},
		Specialties: []string{
			"Missing",
			"InternalMedicine",
			"Family/GeneralPractice",
			"Cardiology",
			"Endocrinology",
			"Other",
		},
		Recommendations: Recommendations{
			HighRisk: []string{
				"Schedule follow-up appointment within 7 days",
				"Ensure medication adherence counseling",
				"Consider home health services",
				"Review discharge planning with care team",
				"Monitor top risk factors closely",
			},
			LowRisk: []string{
				"Standard discharge planning",
				"Follow-up appointment within 2-4 weeks",
				"Patient education on warning signs",
				"Continue current treatment plan",
			},
		},
	}
}
