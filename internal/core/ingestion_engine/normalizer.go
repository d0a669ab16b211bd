package ingestion_engine

import (
	"strings"
	"time"
	"unicode"

	"github.com/niki-health/CarePilot/internal/models"
)

// dateLayouts are tried in order when reparsing extracted dates.
// Unparseable dates normalize to null, never to an error.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Normalize converts a raw extraction into a canonical LabReport.
//
// Dates are reformatted to ISO-8601 (YYYY-MM-DD) or null. Parameter names
// get a consistent title casing; duplicates are kept as separate entries in
// order of appearance. Values are preserved as-is, numeric or not.
// Parameters with no name or no value are dropped. A raw extraction with
// zero parameters still normalizes successfully: an empty parameter list is
// a valid report, the caller decides whether it is useful.
func Normalize(userID, reportID, docType, fileName string, raw *models.RawExtraction) *models.LabReport {
	report := &models.LabReport{
		ID:       reportID,
		UserID:   userID,
		DocType:  docType,
		FileName: fileName,
		Title:    cleanField(raw.Title),
		Date:     NormalizeDate(raw.Date),
		Hospital: cleanField(raw.Hospital),
		Doctor:   cleanField(raw.Doctor),
	}

	params := make([]models.LabParameter, 0, len(raw.Parameters))
	for _, p := range raw.Parameters {
		name := titleCase(strings.TrimSpace(p.Name))
		value := models.ParamValue(strings.TrimSpace(string(p.Value)))
		if name == "" || value == "" {
			continue
		}
		params = append(params, models.LabParameter{
			Name:           name,
			Value:          value,
			Unit:           strings.TrimSpace(p.Unit),
			ReferenceRange: strings.TrimSpace(p.ReferenceRange),
		})
	}
	report.Parameters = params
	return report
}

// NormalizeDate reparses a date string and reformats it as an ISO-8601
// calendar date. Missing or unparseable input yields nil.
func NormalizeDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			iso := t.Format("2006-01-02")
			return &iso
		}
	}
	return nil
}

func cleanField(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// titleCase capitalizes each word but leaves short all-caps tokens alone so
// acronyms like WBC, MCV or RDW survive ("HEMOGLOBIN" -> "Hemoglobin",
// "WBC count" -> "WBC Count").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if isUpperAcronym(w) {
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func isUpperAcronym(w string) bool {
	if len(w) > 5 {
		return false
	}
	hasLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
