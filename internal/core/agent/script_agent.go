package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

// ScriptAgent bridges to the Python extraction agent. The agent is invoked
// as a subprocess with an input JSON file and writes its result to an output
// JSON file; its internals (prompting, its own vector storage) are opaque
// to this service.
type ScriptAgent struct {
	python string
	script string
	log    *zap.Logger
}

// NewScriptAgent returns nil when no script is configured, which the
// pipeline reads as "secondary path unavailable".
func NewScriptAgent(python, script string, log *zap.Logger) *ScriptAgent {
	if script == "" {
		return nil
	}
	if python == "" {
		python = "python3"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScriptAgent{python: python, script: script, log: log}
}

type agentInput struct {
	UserID   string `json:"userId"`
	FilePath string `json:"filePath"`
	FileType string `json:"fileType"`
	DocID    string `json:"docId,omitempty"`
}

// ProcessLab runs the agent once for one document. Any failure to launch,
// a non-zero exit, or an undecodable result maps to core.ErrExtraction so
// the orchestrator falls back to the primary path.
func (a *ScriptAgent) ProcessLab(ctx context.Context, userID, filePath, fileType, docID string) (*models.AgentResult, error) {
	if a == nil {
		return nil, core.ErrAgentUnavailable
	}

	dir, err := os.MkdirTemp("", "carepilot-agent-*")
	if err != nil {
		return nil, fmt.Errorf("agent tmpdir: %v: %w", err, core.ErrExtraction)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.json")
	outPath := filepath.Join(dir, "output.json")

	payload, err := json.Marshal(agentInput{
		UserID: userID, FilePath: filePath, FileType: fileType, DocID: docID,
	})
	if err != nil {
		return nil, fmt.Errorf("agent input: %v: %w", err, core.ErrExtraction)
	}
	if err := os.WriteFile(inPath, payload, 0o600); err != nil {
		return nil, fmt.Errorf("agent input: %v: %w", err, core.ErrExtraction)
	}

	cmd := exec.CommandContext(ctx, a.python, a.script, inPath, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		a.log.Warn("agent process failed",
			zap.String("script", a.script),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		// The script writes a structured error to the output file even on
		// failure; surface its message when there is one.
		if res, readErr := readResult(outPath); readErr == nil && res.Error != "" {
			return nil, fmt.Errorf("agent: %s: %w", res.Error, core.ErrExtraction)
		}
		return nil, fmt.Errorf("agent exited: %v: %w", err, core.ErrExtraction)
	}

	res, err := readResult(outPath)
	if err != nil {
		return nil, fmt.Errorf("agent output: %v: %w", err, core.ErrExtraction)
	}
	if res.Error != "" && !res.WorkflowCompleted {
		return nil, fmt.Errorf("agent: %s: %w", res.Error, core.ErrExtraction)
	}
	return res, nil
}

func readResult(path string) (*models.AgentResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res models.AgentResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

var _ core.LabAgent = (*ScriptAgent)(nil)
