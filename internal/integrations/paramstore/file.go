package paramstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileClient serves parameters from a flat YAML map of name to value. It
// stands in for SSM when running locally.
type FileClient struct {
	values map[string]string
}

// NewFile loads the YAML parameter file at path.
func NewFile(path string) (*FileClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("paramstore: read parameter file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile builds a FileClient from YAML content.
func ParseFile(data []byte) (*FileClient, error) {
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("paramstore: parse parameter file: %w", err)
	}
	return &FileClient{values: values}, nil
}

func (c *FileClient) GetParameter(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	v, ok := c.values[name]
	if !ok {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, ErrNotFound)
	}
	return v, nil
}
