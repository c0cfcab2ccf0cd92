package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// FilterID identifies a filter widget on the table surface. The set is
// closed; entries carrying an unrecognized id are ignored by the
// translator rather than rejected, so newer frontends keep working
// against an older backend.
type FilterID string

const (
	FilterTime      FilterID = "time"
	FilterQueryType FilterID = "queryType"
	FilterDomain    FilterID = "domain"
	FilterClient    FilterID = "client"
	FilterStatus    FilterID = "status"
	FilterDNSSEC    FilterID = "dnssec"
	FilterReply     FilterID = "reply"
)

// FilterAll is the sentinel scalar value meaning "not applied".
const FilterAll = "all"

// FilterEntry is a single active filter: an id plus a value whose shape
// depends on the id (time carries a range, everything else a scalar).
type FilterEntry struct {
	ID    FilterID    `json:"id" yaml:"id"`
	Value FilterValue `json:"value" yaml:"value"`
}

// FilterValue holds either a scalar string or a time range. Which half is
// meaningful is determined by the owning entry's ID.
type FilterValue struct {
	Text  string
	Start time.Time
	End   time.Time
}

// IsRange reports whether the value carries a time range.
func (v FilterValue) IsRange() bool {
	return !v.Start.IsZero() || !v.End.IsZero()
}

// RangeValue builds a time-range filter value.
func RangeValue(start, end time.Time) FilterValue {
	return FilterValue{Start: start, End: end}
}

// TextValue builds a scalar filter value.
func TextValue(s string) FilterValue {
	return FilterValue{Text: s}
}

type rangePayload struct {
	Start int64 `json:"start"` // Unix ms, as sent by the browser
	End   int64 `json:"end"`
}

// UnmarshalJSON accepts either a JSON string (scalar filters) or an
// object with start/end Unix-millisecond instants (the time filter).
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FilterValue{Text: s}
		return nil
	}

	var r rangePayload
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("filter value must be a string or a {start,end} range: %w", err)
	}
	*v = FilterValue{
		Start: time.UnixMilli(r.Start).UTC(),
		End:   time.UnixMilli(r.End).UTC(),
	}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if v.IsRange() {
		return json.Marshal(rangePayload{
			Start: v.Start.UnixMilli(),
			End:   v.End.UnixMilli(),
		})
	}
	return json.Marshal(v.Text)
}

type yamlRange struct {
	Start string `yaml:"start"` // RFC3339
	End   string `yaml:"end"`
}

// UnmarshalYAML accepts a scalar string or a {start,end} mapping with
// RFC3339 instants. Used by the preset files.
func (v *FilterValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = FilterValue{Text: node.Value}
		return nil
	case yaml.MappingNode:
		var r yamlRange
		if err := node.Decode(&r); err != nil {
			return err
		}
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return fmt.Errorf("invalid range start %q: %w", r.Start, err)
		}
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return fmt.Errorf("invalid range end %q: %w", r.End, err)
		}
		*v = FilterValue{Start: start.UTC(), End: end.UTC()}
		return nil
	default:
		return fmt.Errorf("filter value must be a string or a {start,end} range")
	}
}

// MarshalYAML mirrors UnmarshalYAML.
func (v FilterValue) MarshalYAML() (interface{}, error) {
	if v.IsRange() {
		return yamlRange{
			Start: v.Start.UTC().Format(time.RFC3339),
			End:   v.End.UTC().Format(time.RFC3339),
		}, nil
	}
	return v.Text, nil
}

// DefaultFilters seeds a new view: the time filter is always present,
// covering the trailing window ending at now.
func DefaultFilters(window time.Duration, now time.Time) []FilterEntry {
	return []FilterEntry{
		{ID: FilterTime, Value: RangeValue(now.Add(-window), now)},
	}
}
