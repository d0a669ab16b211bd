package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

const extractionSystemPrompt = `You are an expert clinical lab interpreter.
Extract the lab report's metadata and every measured parameter from the
provided content. Do not invent values that are not present.

Return well-formed JSON only, with this exact shape:
{
  "title": "...", "date": "...", "hospital": "...", "doctor": "...",
  "parameters": [
    {"name": "...", "value": <number or string>, "unit": "...", "reference_range": "..."}
  ]
}
Omit fields you cannot find. Keep qualitative values (e.g. "Positive") as strings.`

// GeminiExtractor is the primary extraction path: a Gemini call that turns
// OCR'd text or a page image into the raw extraction payload.
type GeminiExtractor struct {
	client    *genai.Client
	modelName string
}

func NewGeminiExtractor(ctx context.Context, apiKey, modelName string) (*GeminiExtractor, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiExtractor{client: cl, modelName: modelName}, nil
}

func (g *GeminiExtractor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ExtractFromText structures lab results out of extracted document text.
func (g *GeminiExtractor) ExtractFromText(ctx context.Context, text string) (*models.RawExtraction, error) {
	return g.generate(ctx, genai.Text("Lab report content:\n\n"+text))
}

// ExtractFromImage runs a vision call over a page image. mimeType may also
// be application/pdf when rasterization failed and the raw bytes are sent.
func (g *GeminiExtractor) ExtractFromImage(ctx context.Context, data []byte, mimeType string) (*models.RawExtraction, error) {
	return g.generate(ctx, genai.Blob{MIMEType: mimeType, Data: data})
}

func (g *GeminiExtractor) generate(ctx context.Context, part genai.Part) (*models.RawExtraction, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractionSystemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, part)
	if err != nil {
		return nil, fmt.Errorf("gemini extract: %v: %w", err, core.ErrExtraction)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini extract: empty response: %w", core.ErrExtraction)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	return ParseExtraction(b.String())
}

// ParseExtraction validates a model response into a typed RawExtraction.
// The model sometimes wraps its JSON in a markdown fence or surrounding
// prose, so the first JSON object in the text is what gets decoded. Untyped
// data never travels past this boundary.
func ParseExtraction(content string) (*models.RawExtraction, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in extraction response: %w", core.ErrExtraction)
	}

	var raw models.RawExtraction
	dec := json.NewDecoder(strings.NewReader(content[start : end+1]))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode extraction response: %v: %w", err, core.ErrExtraction)
	}
	return &raw, nil
}

var _ core.LabExtractor = (*GeminiExtractor)(nil)
