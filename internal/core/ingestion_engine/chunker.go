package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/niki-health/CarePilot/internal/models"
)

// Chunker splits a report's serialized text into size-bounded, overlapping
// chunks for embedding. It always produces at least one chunk for a valid
// report, even one with no parameters.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// ChunkReport serializes the report and splits it into chunks tagged with
// the source report id and their sequence index.
func (c *Chunker) ChunkReport(report *models.LabReport) []models.Chunk {
	parts := c.split(SerializeReport(report))
	chunks := make([]models.Chunk, len(parts))
	for i, text := range parts {
		chunks[i] = models.Chunk{
			Text:           text,
			SourceReportID: report.ID,
			SequenceIndex:  i,
		}
	}
	return chunks
}

// SerializeReport flattens a report into the text block that gets chunked
// and embedded: a metadata header followed by one parameter per line.
func SerializeReport(report *models.LabReport) string {
	var b strings.Builder
	title := "Lab Report"
	if report.Title != nil {
		title = *report.Title
	}
	b.WriteString(title)
	b.WriteString("\n")
	if report.Date != nil {
		fmt.Fprintf(&b, "Date: %s\n", *report.Date)
	}
	if report.Hospital != nil {
		fmt.Fprintf(&b, "Hospital: %s\n", *report.Hospital)
	}
	if report.Doctor != nil {
		fmt.Fprintf(&b, "Doctor: %s\n", *report.Doctor)
	}
	for _, p := range report.Parameters {
		b.WriteString("\n")
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(string(p.Value))
		if p.Unit != "" {
			b.WriteString(" ")
			b.WriteString(p.Unit)
		}
		if p.ReferenceRange != "" {
			fmt.Fprintf(&b, " (ref: %s)", p.ReferenceRange)
		}
	}
	return strings.TrimSpace(b.String())
}

// split walks the text in windows of at most c.size characters, preferring
// to cut at a sentence or line boundary in the second half of the window.
// The next window starts c.overlap characters before the previous cut so
// consecutive chunks share a span. A boundary-free run longer than the
// window is force-split at the character limit to guarantee progress.
//
// Sizes and offsets count runes, not bytes, so a forced cut never lands
// inside a multibyte character. Windows are emitted as-is: every character
// of the input, whitespace included, appears in at least one chunk.
func (c *Chunker) split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}

		cut := end
		if i := lastBoundary(runes[start:end]); i > c.size/2 {
			cut = start + i
		}
		out = append(out, string(runes[start:cut]))

		next := cut - c.overlap
		if next <= start {
			// Overlap would stall the walk; drop it for this step.
			next = cut
		}
		start = next
	}
	return out
}

// lastBoundary returns the index just past the last sentence or line break
// in rs, or -1 when there is none.
func lastBoundary(rs []rune) int {
	best := -1
	for i, r := range rs {
		switch r {
		case '\n':
			best = i + 1
		case '.', '?', '!':
			if i+1 < len(rs) && (rs[i+1] == ' ' || rs[i+1] == '\n') {
				best = i + 1
			}
		}
	}
	return best
}
