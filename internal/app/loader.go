package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDescriptor reads and validates a descriptor from a YAML file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor file: %w", err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor parses and validates descriptor YAML.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}
	return &d, nil
}
