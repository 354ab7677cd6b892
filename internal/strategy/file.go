package strategy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFile reads a strategy from a JSON file
func LoadFile(path string) (*Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read strategy file: %w", err)
	}

	var s Strategy
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("could not parse strategy file %s: %w", path, err)
	}
	s.EnsureIDs()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy %s: %w", path, err)
	}
	return &s, nil
}

// SaveFile writes the strategy as indented JSON
func SaveFile(s *Strategy, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal strategy: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
