// Package logview implements the fetch/pagination controller behind the
// query log table: it decides when to ask the history service for more
// records, merges cursor pages into the accumulated result set, and
// cancels superseded work when the filters change mid-flight.
package logview

import (
	"context"
	"fmt"
	"sync"

	"github.com/dns-log-viewer/backend/internal/history"
	"github.com/dns-log-viewer/backend/internal/models"
	"github.com/dns-log-viewer/backend/internal/query"
)

// LookaheadPages controls the prefetch cutoff: a page request is skipped
// once the accumulated records already cover the requested page plus one
// more. Keeps scrolling smooth while bounding redundant fetches.
const LookaheadPages = 2

// Fetcher is the subset of the history client the controller uses.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor string, params query.Params) (*history.PageResult, error)
}

// RecordSink receives the records merged in the current filter epoch.
// Append is called after each successful merge, Reset whenever a filter
// change starts a new epoch. The archive store implements this.
type RecordSink interface {
	Append(records []models.LogRecord) error
	Reset() error
}

// Controller owns the state of one log view. All mutation happens under
// the mutex; at most one fetch is in flight (guarded by the loading
// flag), and a fetch's result is only merged when the epoch it captured
// at issue time still matches — a superseded or torn-down fetch resolves
// into a no-op.
type Controller struct {
	mu      sync.Mutex
	fetcher Fetcher
	sink    RecordSink

	records      []models.LogRecord
	cursor       string
	loading      bool
	atEnd        bool
	filtersDirty bool
	filters      []models.FilterEntry
	lastErr      error

	epoch  uint64
	cancel context.CancelFunc
	closed bool
}

// New creates a controller with the given initial filter set. The view
// layer seeds a default time filter so the time filter is always present.
func New(fetcher Fetcher, filters []models.FilterEntry) *Controller {
	return &Controller{
		fetcher:      fetcher,
		filters:      append([]models.FilterEntry(nil), filters...),
		filtersDirty: true,
	}
}

// AttachSink wires a record sink. Must be called before the first fetch.
func (c *Controller) AttachSink(sink RecordSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// RequestPage is called by the table surface whenever it wants rows for
// page (0-based) of size pageSize. It is a no-op while a fetch is in
// flight, after end-of-data, and when the accumulated records already
// cover the requested page plus the lookahead page.
func (c *Controller) RequestPage(page, pageSize int) {
	c.mu.Lock()
	if c.closed || c.atEnd || c.loading {
		c.mu.Unlock()
		return
	}
	if !c.filtersDirty && len(c.records) >= (page+LookaheadPages)*pageSize {
		c.mu.Unlock()
		return
	}

	c.loading = true
	c.lastErr = nil
	epoch := c.epoch
	cursor := c.cursor
	params := query.Translate(c.filters)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.fetch(ctx, epoch, cursor, params)
}

// fetch is the completion path of the single outstanding request. State
// is only touched when the captured epoch still matches.
func (c *Controller) fetch(ctx context.Context, epoch uint64, cursor string, params query.Params) {
	page, err := c.fetcher.FetchPage(ctx, cursor, params)

	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		// Superseded by a filter change or teardown: discard.
		c.mu.Unlock()
		return
	}
	c.loading = false
	c.cancel = nil

	if err != nil {
		if history.IsCancellation(err) {
			c.mu.Unlock()
			return
		}
		// Transport failure: keep records/cursor/atEnd so the next
		// RequestPage retries from the same spot.
		c.lastErr = err
		c.mu.Unlock()
		return
	}

	c.records = append(c.records, page.Records...)
	c.cursor = page.NextCursor
	c.atEnd = page.AtEnd()
	c.filtersDirty = false
	sink := c.sink
	c.mu.Unlock()

	if sink != nil && len(page.Records) > 0 {
		// The in-memory records are authoritative; a failed mirror write
		// only degrades the CSV export.
		if err := sink.Append(page.Records); err != nil {
			fmt.Printf("[LogView] WARNING: archive append failed: %v\n", err)
		}
	}
}

// SetFilters replaces the active filter set and starts a new filter
// epoch: accumulated records are cleared, end-of-data is reset, and any
// in-flight fetch is canceled so its late result cannot leak into the
// new epoch.
func (c *Controller) SetFilters(filters []models.FilterEntry) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.filters = append([]models.FilterEntry(nil), filters...)
	c.filtersDirty = true
	c.records = nil
	c.cursor = ""
	c.atEnd = false
	c.loading = false
	c.lastErr = nil
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		if err := sink.Reset(); err != nil {
			fmt.Printf("[LogView] WARNING: archive reset failed: %v\n", err)
		}
	}
}

// Teardown cancels any in-flight fetch and freezes the controller. No
// state mutation happens after this call.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Window returns the accumulated rows covering the requested page,
// clipped to what has been fetched so far.
func (c *Controller) Window(page, pageSize int) []models.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := page * pageSize
	if start < 0 || start >= len(c.records) {
		return []models.LogRecord{}
	}
	end := start + pageSize
	if end > len(c.records) {
		end = len(c.records)
	}
	return c.records[start:end]
}

// State returns the render snapshot for the table surface.
func (c *Controller) State() models.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := models.ViewState{
		Total:   len(c.records),
		Loading: c.loading,
		AtEnd:   c.atEnd,
	}
	if c.lastErr != nil {
		state.LastError = c.lastErr.Error()
	}
	return state
}

// Records returns the full accumulated record list of the current epoch.
// The slice must be treated as read-only.
func (c *Controller) Records() []models.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records
}

// Filters returns a copy of the active filter set.
func (c *Controller) Filters() []models.FilterEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.FilterEntry(nil), c.filters...)
}
