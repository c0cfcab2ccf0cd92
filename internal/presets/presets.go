// Package presets loads and saves named filter sets as YAML
// (data/presets.yaml by default, see the Storage config section).
package presets

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dns-log-viewer/backend/internal/models"
)

// Load parses a YAML preset file from disk.
func Load(filePath string) ([]models.FilterPreset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseFromReader(file)
}

// ParseFromReader parses presets from an io.Reader.
func ParseFromReader(r io.Reader) ([]models.FilterPreset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseFromBytes(data)
}

// ParseFromBytes parses presets from raw YAML.
func ParseFromBytes(data []byte) ([]models.FilterPreset, error) {
	var file models.PresetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for i, p := range file.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
	}
	return file.Presets, nil
}

// Save writes presets back to disk as YAML.
func Save(filePath string, list []models.FilterPreset) error {
	data, err := yaml.Marshal(models.PresetFile{Presets: list})
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	return os.WriteFile(filePath, data, 0644)
}
