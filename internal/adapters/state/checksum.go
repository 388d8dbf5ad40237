package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// taskContent is the part of a task record covered by its checksum.
// Timestamps are left out since backends store them at different precisions.
type taskContent struct {
	ID          core.TaskID     `json:"id"`
	TemplateID  string          `json:"template_id"`
	Input       string          `json:"input"`
	Steps       []core.Step     `json:"steps"`
	CurrentStep int             `json:"current_step"`
	Results     []string        `json:"results"`
	Status      core.TaskStatus `json:"status"`
	Progress    int             `json:"progress"`
	TokenCost   int             `json:"token_cost"`
	Error       string          `json:"error"`
}

func taskChecksum(t *core.TaskRecord) (string, error) {
	results := t.Results
	if results == nil {
		results = []string{}
	}
	b, err := json.Marshal(taskContent{
		ID:          t.ID,
		TemplateID:  t.TemplateID,
		Input:       t.Input,
		Steps:       t.Steps,
		CurrentStep: t.CurrentStep,
		Results:     results,
		Status:      t.Status,
		Progress:    t.Progress,
		TokenCost:   t.TokenCost,
		Error:       t.Error,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling task for checksum: %w", err)
	}
	return checksumBytes(b), nil
}

func checksumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
