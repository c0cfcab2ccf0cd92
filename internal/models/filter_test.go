package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFilterValueJSONScalar(t *testing.T) {
	var entry FilterEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id":"domain","value":"pi.hole"}`), &entry))
	assert.Equal(t, FilterDomain, entry.ID)
	assert.False(t, entry.Value.IsRange())
	assert.Equal(t, "pi.hole", entry.Value.Text)
}

func TestFilterValueJSONRange(t *testing.T) {
	var entry FilterEntry
	require.NoError(t, json.Unmarshal(
		[]byte(`{"id":"time","value":{"start":1756400000000,"end":1756500000000}}`), &entry))
	require.True(t, entry.Value.IsRange())
	assert.Equal(t, int64(1756400000), entry.Value.Start.Unix())
	assert.Equal(t, int64(1756500000), entry.Value.End.Unix())

	// Round-trips back to the unix-ms shape.
	out, err := json.Marshal(entry.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":1756400000000,"end":1756500000000}`, string(out))
}

func TestFilterValueJSONRejectsOtherShapes(t *testing.T) {
	var v FilterValue
	assert.Error(t, json.Unmarshal([]byte(`42`), &v))
}

func TestFilterValueYAML(t *testing.T) {
	doc := `
- id: status
  value: blocked
- id: time
  value:
    start: "2026-08-29T00:00:00Z"
    end: "2026-08-30T00:00:00Z"
`
	var entries []FilterEntry
	require.NoError(t, yaml.Unmarshal([]byte(doc), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "blocked", entries[0].Value.Text)
	require.True(t, entries[1].Value.IsRange())
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), entries[1].Value.Start)

	var bad FilterEntry
	assert.Error(t, yaml.Unmarshal([]byte("id: time\nvalue:\n  start: yesterday\n  end: today\n"), &bad))
}

func TestDefaultFiltersSeedTimeWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	filters := DefaultFilters(24*time.Hour, now)
	require.Len(t, filters, 1)
	assert.Equal(t, FilterTime, filters[0].ID)
	assert.Equal(t, now.Add(-24*time.Hour), filters[0].Value.Start)
	assert.Equal(t, now, filters[0].Value.End)
}

func TestBlockedStatus(t *testing.T) {
	blocked := map[int]bool{0: false, 1: true, 2: false, 3: false, 4: true, 5: true, 6: true}
	for status, want := range blocked {
		assert.Equal(t, want, BlockedStatus(status), "status %d", status)
	}
}
