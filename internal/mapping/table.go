package mapping

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one explicit tag mapping as configured in YAML.
type Entry struct {
	TagKey    string `yaml:"tag_key"`
	Cab       string `yaml:"cab"`
	Stack     string `yaml:"stack"`
	Cluster   string `yaml:"cluster"`
	Pack      string `yaml:"pack"`
	Cell      string `yaml:"cell"`
	Property  string `yaml:"property"`
	ValueType string `yaml:"value_type"`
}

// Validate checks entry invariants.
func (e Entry) Validate() error {
	if e.TagKey == "" {
		return errors.New("mapping: empty tag key")
	}
	if e.Property == "" {
		return fmt.Errorf("mapping: entry %s: empty property", e.TagKey)
	}
	if _, err := ParseValueType(e.ValueType); err != nil {
		return fmt.Errorf("mapping: entry %s: %w", e.TagKey, err)
	}
	return nil
}

// Table holds explicit tag mappings keyed by tag key.
type Table struct {
	points map[string]Point
}

type tableFile struct {
	Mappings []Entry `yaml:"mappings"`
}

// NewTable builds a table from validated entries.
func NewTable(entries []Entry) (*Table, error) {
	points := make(map[string]Point, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		valueType, err := ParseValueType(entry.ValueType)
		if err != nil {
			return nil, err
		}
		points[entry.TagKey] = Point{
			Cab:       entry.Cab,
			Stack:     entry.Stack,
			Cluster:   entry.Cluster,
			Pack:      entry.Pack,
			Cell:      entry.Cell,
			Property:  entry.Property,
			ValueType: valueType,
		}
	}
	return &Table{points: points}, nil
}

// LoadTable reads a YAML mapping file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("mapping: parse %s: %w", path, err)
	}
	return NewTable(file.Mappings)
}

// Lookup returns the point for a tag key, if explicitly mapped.
func (t *Table) Lookup(tagKey string) (Point, bool) {
	if t == nil {
		return Point{}, false
	}
	point, ok := t.points[tagKey]
	return point, ok
}

// Len returns the number of explicit mappings.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.points)
}
