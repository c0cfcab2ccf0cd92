package models

// FilterPreset is a named, saved filter set. Presets are stored as YAML
// (see internal/presets) and applied by the table surface as a whole
// replacement of the active filter list.
type FilterPreset struct {
	Name    string        `json:"name" yaml:"name"`
	Filters []FilterEntry `json:"filters" yaml:"filters"`
}

// PresetFile is the on-disk YAML document holding all presets.
type PresetFile struct {
	Presets []FilterPreset `json:"presets" yaml:"presets"`
}
