package core

import "errors"

// Pipeline error taxonomy. Stages wrap these sentinels with fmt.Errorf("%w")
// so the orchestrator and the HTTP layer can classify failures with
// errors.Is without depending on concrete implementations.
var (
	// ErrValidation rejects a request before any external call is made
	// (disallowed file type, oversized file, malformed payload).
	ErrValidation = errors.New("validation failed")

	// ErrOCR means the input could not be read at all. Fatal: no report can
	// be produced without readable input.
	ErrOCR = errors.New("ocr failed")

	// ErrExtraction means an extraction path (agent or vision) produced no
	// usable result. The orchestrator falls back; if every path fails the
	// whole ingestion fails.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbedding covers provider failures and count mismatches from the
	// embedding service. Non-fatal: degrades vector storage only.
	ErrEmbedding = errors.New("embedding service failed")

	// ErrVectorStore covers vector index write failures. Non-fatal.
	ErrVectorStore = errors.New("vector store failed")

	// ErrPersistence covers relational store failures. Fatal: the canonical
	// report could not be durably stored.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned for lookups that miss, including lookups for
	// records owned by a different tenant.
	ErrNotFound = errors.New("not found")

	// ErrAgentUnavailable signals that no secondary extraction agent is
	// configured; the orchestrator goes straight to the primary path.
	ErrAgentUnavailable = errors.New("extraction agent unavailable")
)
