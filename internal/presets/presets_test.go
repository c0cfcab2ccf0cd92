package presets

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dns-log-viewer/backend/internal/models"
)

const sampleYAML = `
presets:
  - name: Blocked today
    filters:
      - id: time
        value:
          start: "2026-08-29T00:00:00Z"
          end: "2026-08-30T00:00:00Z"
      - id: status
        value: blocked
  - name: One client
    filters:
      - id: client
        value: "10.0.0.2"
`

func TestParseFromBytes(t *testing.T) {
	list, err := ParseFromBytes([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Blocked today", list[0].Name)
	require.Len(t, list[0].Filters, 2)

	timeFilter := list[0].Filters[0]
	assert.Equal(t, models.FilterTime, timeFilter.ID)
	assert.True(t, timeFilter.Value.IsRange())
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), timeFilter.Value.Start)

	statusFilter := list[0].Filters[1]
	assert.Equal(t, models.FilterStatus, statusFilter.ID)
	assert.Equal(t, "blocked", statusFilter.Value.Text)
}

func TestParseRejectsUnnamedPreset(t *testing.T) {
	_, err := ParseFromBytes([]byte("presets:\n  - filters: []\n"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	in := []models.FilterPreset{
		{
			Name: "AAAA only",
			Filters: []models.FilterEntry{
				{ID: models.FilterQueryType, Value: models.TextValue("1")},
			},
		},
	}

	require.NoError(t, Save(path, in))
	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
