// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadRegistry reads an activity registry file.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a registry document.
func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	return &reg, nil
}

// LoadOrDefault reads path and falls back to the bundled registry when the
// file does not exist.
func LoadOrDefault(path string, bundled []byte) (*ActivityRegistry, error) {
	reg, err := LoadRegistry(path)
	if err == nil {
		return reg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return Parse(bundled)
}

// Save writes the registry with stable indentation.
func Save(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal activity registry: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ByTaskType returns the activity registered for a Zeebe task type.
func (r *ActivityRegistry) ByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// ByID returns the activity with the given id.
func (r *ActivityRegistry) ByID(id string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], true
		}
	}
	return nil, false
}
