package archive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dns-log-viewer/backend/internal/models"
)

func testRecords(n int) []models.LogRecord {
	records := make([]models.LogRecord, n)
	for i := range records {
		records[i] = models.LogRecord{
			Timestamp: int64(1756500000 - i),
			QueryType: 1,
			Domain:    "example.com",
			Client:    "10.0.0.2",
			Status:    2,
			Reply:     4,
			ReplyTime: 15,
		}
	}
	return records
}

func TestDuckStoreAppendExport(t *testing.T) {
	store, err := NewDuckStore(t.TempDir(), "view-1", Tuning{})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(testRecords(3)))
	assert.Equal(t, 3, store.Len())

	var buf bytes.Buffer
	require.NoError(t, store.ExportCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4) // header + 3 rows
	assert.Equal(t, "timestamp,type,domain,client,status,dnssec,reply,reply_time", lines[0])
	assert.Contains(t, lines[1], "1756500000")
	assert.Contains(t, lines[1], "example.com")
}

func TestDuckStoreReset(t *testing.T) {
	store, err := NewDuckStore(t.TempDir(), "view-2", Tuning{})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(testRecords(5)))
	require.NoError(t, store.Reset())
	assert.Equal(t, 0, store.Len())

	var buf bytes.Buffer
	require.NoError(t, store.ExportCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1, "only the header remains after a reset")

	// The store is usable again for the new epoch.
	require.NoError(t, store.Append(testRecords(2)))
	assert.Equal(t, 2, store.Len())
}

func TestDuckStoreClosedRejectsWrites(t *testing.T) {
	store, err := NewDuckStore(t.TempDir(), "view-3", Tuning{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.Append(testRecords(1)))
	assert.Error(t, store.Reset())
	assert.NoError(t, store.Close(), "double close is a no-op")
}
