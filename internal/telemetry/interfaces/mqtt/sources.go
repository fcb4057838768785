package mqtt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type sourcesFile struct {
	Sources []Config `yaml:"sources"`
}

// LoadSources reads the source list from a yaml file.
func LoadSources(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mqtt sources: %w", err)
	}
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("mqtt sources: %w", err)
	}
	for i, cfg := range file.Sources {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("mqtt sources: entry %d: %w", i, err)
		}
	}
	return file.Sources, nil
}
