package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sidecar is the JSON metadata written next to a packaged artifact.
type Sidecar struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ReadSidecar loads and validates the sidecar at path.
func ReadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, err
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return Sidecar{}, fmt.Errorf("decode sidecar: %w", err)
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Version = strings.TrimSpace(s.Version)
	if s.Name == "" {
		return Sidecar{}, errors.New("sidecar has no package name")
	}
	if s.Version == "" {
		return Sidecar{}, errors.New("sidecar has no version")
	}
	return s, nil
}
