package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/schema"
)

type hashDocument struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Inputs schema.Inputs  `json:"inputs"`
	Extra  map[string]any `json:"extra"`
}

// TaskHash identifies one task invocation in the checkpoint: the sha256 of
// its type, resolved name, parsed inputs and extra parameters. JSON encoding
// sorts map keys, so the hash does not depend on map iteration order.
func TaskHash(taskType, name string, in schema.Inputs, extra map[string]any) (string, error) {
	if extra == nil {
		extra = map[string]any{}
	}
	data, err := json.Marshal(hashDocument{Type: taskType, Name: name, Inputs: in, Extra: extra})
	if err != nil {
		return "", fmt.Errorf("hash task '%s': %w", name, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
