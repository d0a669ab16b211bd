package models

import (
	"encoding/json"
	"testing"
)

func TestParamValueUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ParamValue
		wantErr bool
	}{
		{"string", `"Positive"`, "Positive", false},
		{"integer", `42`, "42", false},
		{"float", `13.5`, "13.5", false},
		{"numeric string", `"13.5"`, "13.5", false},
		{"object", `{"v":1}`, "", true},
		{"array", `[1,2]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ParamValue
			err := json.Unmarshal([]byte(tt.in), &v)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("unmarshal %s: expected error, got %q", tt.in, v)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %s: %v", tt.in, err)
			}
			if v != tt.want {
				t.Fatalf("unmarshal %s = %q, want %q", tt.in, v, tt.want)
			}
		})
	}
}

func TestParamValueNumeric(t *testing.T) {
	tests := []struct {
		in   ParamValue
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"12.5 H", 12.5, true},
		{"1,200", 1200, true},
		{"-0.4", -0.4, true},
		{"<5", 5, true},
		{"Positive", 0, false},
		{"Trace", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := tt.in.Numeric()
		if ok != tt.ok || got != tt.want {
			t.Errorf("Numeric(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
