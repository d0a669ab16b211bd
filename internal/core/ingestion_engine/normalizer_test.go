package ingestion_engine

import (
	"testing"

	"github.com/niki-health/CarePilot/internal/models"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // "" means nil
	}{
		{"iso passthrough", "2024-03-15", "2024-03-15"},
		{"us slash", "03/15/2024", "2024-03-15"},
		{"short month name", "Mar 15, 2024", "2024-03-15"},
		{"long month name", "March 15, 2024", "2024-03-15"},
		{"day first", "15-03-2024", "2024-03-15"},
		{"rfc3339", "2024-03-15T10:30:00Z", "2024-03-15"},
		{"whitespace trimmed", "  2024-03-15  ", "2024-03-15"},
		{"empty", "", ""},
		{"garbage", "sometime last spring", ""},
		{"partial", "March 2024", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("NormalizeDate(%q) = %q, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("NormalizeDate(%q) = nil, want %q", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Fatalf("NormalizeDate(%q) = %q, want %q", tt.in, *got, tt.want)
			}
		})
	}
}

func TestNormalizeParameterNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase word", "hemoglobin", "Hemoglobin"},
		{"all caps long word", "HEMOGLOBIN", "Hemoglobin"},
		{"acronym preserved", "WBC", "WBC"},
		{"acronym inside phrase", "WBC count", "WBC Count"},
		{"mixed phrase", "mean corpuscular VOLUME", "Mean Corpuscular Volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &models.RawExtraction{
				Parameters: []models.RawParameter{{Name: tt.in, Value: "1"}},
			}
			report := Normalize("u1", "r1", DocTypeLabReport, "a.pdf", raw)
			if len(report.Parameters) != 1 {
				t.Fatalf("got %d parameters, want 1", len(report.Parameters))
			}
			if got := report.Parameters[0].Name; got != tt.want {
				t.Fatalf("name %q normalized to %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDropsIncompleteParameters(t *testing.T) {
	raw := &models.RawExtraction{
		Parameters: []models.RawParameter{
			{Name: "Glucose", Value: "98", Unit: "mg/dL"},
			{Name: "", Value: "42"},
			{Name: "Sodium", Value: ""},
			{Name: "   ", Value: "7"},
			{Name: "Ketones", Value: "Trace"},
		},
	}
	report := Normalize("u1", "r1", DocTypeLabReport, "a.pdf", raw)

	if len(report.Parameters) != 2 {
		t.Fatalf("got %d parameters, want 2: %+v", len(report.Parameters), report.Parameters)
	}
	if report.Parameters[0].Name != "Glucose" || report.Parameters[1].Name != "Ketones" {
		t.Fatalf("wrong parameters kept: %+v", report.Parameters)
	}
	// Qualitative values pass through untouched.
	if report.Parameters[1].Value != "Trace" {
		t.Fatalf("qualitative value mangled: %q", report.Parameters[1].Value)
	}
}

func TestNormalizeKeepsDuplicatesInOrder(t *testing.T) {
	raw := &models.RawExtraction{
		Parameters: []models.RawParameter{
			{Name: "Glucose", Value: "98"},
			{Name: "glucose", Value: "101"},
		},
	}
	report := Normalize("u1", "r1", DocTypeLabReport, "a.pdf", raw)

	if len(report.Parameters) != 2 {
		t.Fatalf("got %d parameters, want 2", len(report.Parameters))
	}
	if report.Parameters[0].Value != "98" || report.Parameters[1].Value != "101" {
		t.Fatalf("order not preserved: %+v", report.Parameters)
	}
}

func TestNormalizeEmptyExtractionIsValid(t *testing.T) {
	raw := &models.RawExtraction{
		RawMetadata: models.RawMetadata{Title: "CBC Panel", Date: "not a date"},
	}
	report := Normalize("u1", "r1", DocTypeLabReport, "a.pdf", raw)

	if report.ID != "r1" || report.UserID != "u1" {
		t.Fatalf("identity fields wrong: %+v", report)
	}
	if report.Date != nil {
		t.Fatalf("unparseable date should be nil, got %q", *report.Date)
	}
	if report.Title == nil || *report.Title != "CBC Panel" {
		t.Fatalf("title not carried: %+v", report.Title)
	}
	if len(report.Parameters) != 0 {
		t.Fatalf("expected empty parameter list, got %+v", report.Parameters)
	}
}
