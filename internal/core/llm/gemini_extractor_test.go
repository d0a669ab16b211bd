package llm

import (
	"errors"
	"testing"

	"github.com/niki-health/CarePilot/internal/core"
)

func TestParseExtraction(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		raw, err := ParseExtraction(`{"title":"CBC","date":"2024-03-15","parameters":[{"name":"Hemoglobin","value":13.5,"unit":"g/dL"}]}`)
		if err != nil {
			t.Fatalf("ParseExtraction: %v", err)
		}
		if raw.Title != "CBC" || len(raw.Parameters) != 1 {
			t.Fatalf("unexpected extraction: %+v", raw)
		}
		// Numeric JSON values land as strings.
		if raw.Parameters[0].Value != "13.5" {
			t.Fatalf("value %q, want 13.5", raw.Parameters[0].Value)
		}
	})

	t.Run("markdown fence", func(t *testing.T) {
		content := "Here are the results:\n```json\n{\"title\":\"Lipid Panel\",\"parameters\":[{\"name\":\"LDL\",\"value\":\"110\"}]}\n```\nLet me know if you need more."
		raw, err := ParseExtraction(content)
		if err != nil {
			t.Fatalf("ParseExtraction: %v", err)
		}
		if raw.Title != "Lipid Panel" || raw.Parameters[0].Name != "LDL" {
			t.Fatalf("unexpected extraction: %+v", raw)
		}
	})

	t.Run("qualitative value", func(t *testing.T) {
		raw, err := ParseExtraction(`{"parameters":[{"name":"Ketones","value":"Trace"}]}`)
		if err != nil {
			t.Fatalf("ParseExtraction: %v", err)
		}
		if raw.Parameters[0].Value != "Trace" {
			t.Fatalf("value %q, want Trace", raw.Parameters[0].Value)
		}
	})

	t.Run("no json object", func(t *testing.T) {
		_, err := ParseExtraction("I could not read the document.")
		if !errors.Is(err, core.ErrExtraction) {
			t.Fatalf("want ErrExtraction, got %v", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseExtraction(`{"parameters": [}`)
		if !errors.Is(err, core.ErrExtraction) {
			t.Fatalf("want ErrExtraction, got %v", err)
		}
	})
}
