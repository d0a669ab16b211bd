package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ParamValue is a lab result value. Lab systems report both numeric results
// ("12.5") and qualitative ones ("Positive", "Trace"), so the value is kept
// as the string it arrived as and never coerced.
type ParamValue string

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (v *ParamValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = ParamValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*v = ParamValue(n.String())
		return nil
	}
	return fmt.Errorf("parameter value must be a string or a number, got %s", string(b))
}

var firstNumberRe = regexp.MustCompile(`-?\d+\.?\d*`)

// Numeric extracts the first number embedded in the value ("12.5", "12.5 H",
// "1,200"). Qualitative values return ok=false.
func (v ParamValue) Numeric() (float64, bool) {
	m := firstNumberRe.FindString(strings.ReplaceAll(string(v), ",", ""))
	if m == "" {
		return 0, false
	}
	var f float64
	if _, err := fmt.Sscanf(m, "%f", &f); err != nil {
		return 0, false
	}
	return f, true
}

// LabParameter is one measured result inside a report.
type LabParameter struct {
	Name           string     `db:"name" json:"name"`
	Value          ParamValue `db:"value" json:"value"`
	Unit           string     `db:"unit" json:"unit,omitempty"`
	ReferenceRange string     `db:"reference_range" json:"reference_range,omitempty"`
}

// LabReport is the canonical, normalized form of an ingested report.
// Reports are created once per successful ingestion and never mutated;
// a re-upload creates a new record.
type LabReport struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	DocType    string         `db:"doc_type" json:"doc_type"` // lab_report | claim | eob
	Title      *string        `db:"title" json:"title"`
	Date       *string        `db:"report_date" json:"date"` // ISO-8601 calendar date or null
	Hospital   *string        `db:"hospital" json:"hospital"`
	Doctor     *string        `db:"doctor" json:"doctor"`
	FileName   string         `db:"file_name" json:"file_name"`
	Parameters []LabParameter `json:"parameters"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// RawMetadata is the loosely-typed descriptive block returned by the
// extraction boundary (vision call or agent). All fields are optional.
type RawMetadata struct {
	Title    string `json:"title,omitempty"`
	Date     string `json:"date,omitempty"`
	Hospital string `json:"hospital,omitempty"`
	Doctor   string `json:"doctor,omitempty"`
}

// RawParameter mirrors one parameter as the extraction step reports it,
// before normalization.
type RawParameter struct {
	Name           string     `json:"name"`
	Value          ParamValue `json:"value"`
	Unit           string     `json:"unit,omitempty"`
	ReferenceRange string     `json:"reference_range,omitempty"`
}

// RawExtraction is the untrusted payload produced by the OCR+LLM boundary.
// It is validated and normalized before anything downstream sees it.
type RawExtraction struct {
	RawMetadata
	Parameters []RawParameter `json:"parameters"`
}

// Chunk is a bounded span of a report's serialized text, the unit of
// embedding. Chunks are ephemeral: produced and consumed within one
// ingestion run, only the resulting vectors outlive it.
type Chunk struct {
	Text           string
	SourceReportID string
	SequenceIndex  int
}

// VectorMetadata is the flat key/value payload stored alongside each vector.
// The index does not accept nested structures. user_id and doc_type are the
// multi-tenant access-control boundary: every query must filter on them.
type VectorMetadata struct {
	UserID     string `json:"user_id"`
	DocType    string `json:"doc_type"`
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Title      string `json:"title,omitempty"`
	Date       string `json:"date,omitempty"`
	Hospital   string `json:"hospital,omitempty"`
	Doctor     string `json:"doctor,omitempty"`
	FileName   string `json:"file_name,omitempty"`
}

// VectorRecord is one embedded chunk bound for the vector index.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Metadata  VectorMetadata
}

// VectorMatch is one query hit from the vector index.
type VectorMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata VectorMetadata `json:"metadata"`
}

// AgentResult is the self-reported outcome of the secondary extraction
// agent. The agent can do OCR, extraction and vector storage on its own;
// when WorkflowCompleted is true its output supersedes the primary path's
// chunk/embed/upsert stages.
type AgentResult struct {
	WorkflowCompleted bool           `json:"workflow_completed"`
	Parameters        []RawParameter `json:"parameters"`
	LabMetadata       RawMetadata    `json:"lab_metadata"`
	PineconeStored    bool           `json:"pinecone_stored"`
	DocID             string         `json:"doc_id,omitempty"`
	VectorID          string         `json:"vector_id,omitempty"`
	ChunkCount        int            `json:"chunk_count,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// IngestionResult reports one pipeline run back to the caller. It is never
// persisted. VectorStoreSucceeded=false means searchable history is
// degraded, not that the upload failed.
type IngestionResult struct {
	ReportID             string   `json:"report_id"`
	VectorIDs            []string `json:"vector_ids"`
	VectorStoreSucceeded bool     `json:"vector_store_succeeded"`
}

// ParameterSample is one parameter observation joined with its report date,
// used to assemble per-parameter time series across a user's history.
type ParameterSample struct {
	ReportID string     `json:"report_id"`
	Date     *string    `json:"date"`
	Name     string     `json:"name"`
	Value    ParamValue `json:"value"`
	Unit     string     `json:"unit,omitempty"`
}
