package pharmacy

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	noInteractions      = "No significant interactions detected"
	verifyAllergyStatus = "Verify patient allergy status before dispensing"
	lowConfidence       = 70
)

type Sentry struct {
	Contraindications []string `json:"contraindications"`
	DrugInteractions  []string `json:"drug_interactions"`
	Warnings          []string `json:"warnings"`
	ConfidenceFlags   []string `json:"confidence_flags"`
}

type interaction struct {
	a, b   string
	effect string
}

// knownInteractions pairs ingredients matched as lower-case substrings of
// the medication name.
var knownInteractions = []interaction{
	{"warfarin", "aspirin", "increased bleeding risk"},
	{"warfarin", "ibuprofen", "increased bleeding risk"},
	{"warfarin", "diclofenac", "increased bleeding risk"},
	{"clopidogrel", "omeprazole", "reduced antiplatelet effect"},
	{"simvastatin", "clarithromycin", "risk of myopathy"},
	{"atorvastatin", "clarithromycin", "risk of myopathy"},
	{"lisinopril", "spironolactone", "risk of hyperkalaemia"},
	{"enalapril", "spironolactone", "risk of hyperkalaemia"},
	{"sildenafil", "nitroglycerin", "severe hypotension"},
	{"sildenafil", "isosorbide", "severe hypotension"},
	{"tramadol", "sertraline", "risk of serotonin syndrome"},
	{"tramadol", "fluoxetine", "risk of serotonin syndrome"},
	{"ciprofloxacin", "theophylline", "theophylline toxicity"},
	{"methotrexate", "trimethoprim", "bone marrow suppression"},
	{"digoxin", "amiodarone", "digoxin toxicity"},
}

func contains(a, b string) bool {
	return a != "" && b != "" && strings.Contains(strings.ToLower(a), strings.ToLower(b))
}

func buildSentry(meds []Medication, allergies []string, aiWarnings gjson.Result) Sentry {
	s := Sentry{
		Contraindications: []string{},
		DrugInteractions:  []string{},
		Warnings:          []string{},
		ConfidenceFlags:   []string{},
	}

	for _, m := range meds {
		for _, a := range allergies {
			if contains(m.Name, a) || contains(a, m.Name) {
				s.Contraindications = append(s.Contraindications,
					fmt.Sprintf("Patient allergic to %s - %s contraindicated", a, m.Name))
			}
		}
	}

	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			for _, in := range knownInteractions {
				x, y := meds[i].Name, meds[j].Name
				if (contains(x, in.a) && contains(y, in.b)) || (contains(x, in.b) && contains(y, in.a)) {
					s.DrugInteractions = append(s.DrugInteractions, fmt.Sprintf("%s + %s: %s", x, y, in.effect))
				}
			}
		}
	}
	if len(s.DrugInteractions) == 0 {
		s.DrugInteractions = append(s.DrugInteractions, noInteractions)
	}

	aiWarnings.ForEach(func(_, w gjson.Result) bool {
		if w.String() != "" {
			s.Warnings = append(s.Warnings, w.String())
		}
		return true
	})
	if len(allergies) > 0 {
		s.Warnings = append(s.Warnings, verifyAllergyStatus)
	}

	for _, m := range meds {
		if m.Confidence < lowConfidence {
			s.ConfidenceFlags = append(s.ConfidenceFlags, "Low confidence on "+m.Name)
		}
		switch m.StockStatus {
		case StockLow:
			s.ConfidenceFlags = append(s.ConfidenceFlags, "Low stock warning on "+m.Name)
		case StockOut:
			s.ConfidenceFlags = append(s.ConfidenceFlags, "Out of stock: "+m.Name)
		}
		if m.GenericAvailable {
			s.ConfidenceFlags = append(s.ConfidenceFlags, "Generic substitution available for "+m.Name)
		}
	}
	return s
}
