package logview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dns-log-viewer/backend/internal/history"
	"github.com/dns-log-viewer/backend/internal/models"
	"github.com/dns-log-viewer/backend/internal/query"
)

type fetchCall struct {
	cursor string
	params query.Params
}

type reply struct {
	page *history.PageResult
	err  error
}

// fakeFetcher replays scripted replies in call order. When gate is set,
// calls block until the gate closes; ignoreCancel simulates a transport
// that races past cancellation and still delivers its result.
type fakeFetcher struct {
	mu           sync.Mutex
	calls        []fetchCall
	replies      []reply
	gate         chan struct{}
	ignoreCancel bool
}

func (f *fakeFetcher) FetchPage(ctx context.Context, cursor string, params query.Params) (*history.PageResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{cursor: cursor, params: params})
	idx := len(f.calls) - 1
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		if f.ignoreCancel {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < len(f.replies) {
		r := f.replies[idx]
		return r.page, r.err
	}
	return &history.PageResult{}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) call(i int) fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func mkRecords(n int, domain string) []models.LogRecord {
	records := make([]models.LogRecord, n)
	for i := range records {
		records[i] = models.LogRecord{
			Timestamp: int64(1756500000 - i),
			Domain:    fmt.Sprintf("%s-%d", domain, i),
			Client:    "10.0.0.2",
		}
	}
	return records
}

func timeFilter(from, until time.Time) []models.FilterEntry {
	return []models.FilterEntry{
		{ID: models.FilterTime, Value: models.RangeValue(from, until)},
	}
}

func waitIdle(t *testing.T, c *Controller) models.ViewState {
	t.Helper()
	require.Eventually(t, func() bool {
		return !c.State().Loading
	}, time.Second, 5*time.Millisecond)
	return c.State()
}

func TestRequestPagePrefetchThenStop(t *testing.T) {
	from := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	c1 := "c1"
	f := &fakeFetcher{replies: []reply{
		{page: &history.PageResult{Records: mkRecords(50, "a"), NextCursor: c1}},
		{page: &history.PageResult{Records: mkRecords(50, "b"), NextCursor: "c2"}},
		{page: &history.PageResult{Records: mkRecords(50, "c"), NextCursor: "c3"}},
	}}
	c := New(f, timeFilter(from, until))

	c.RequestPage(0, 50)
	state := waitIdle(t, c)
	assert.Equal(t, 50, state.Total)
	assert.False(t, state.AtEnd)

	// The first fetch carried the translated time bounds and no cursor.
	first := f.call(0)
	assert.Equal(t, "", first.cursor)
	assert.Equal(t, from.Unix(), first.params["from"])
	assert.Equal(t, until.Unix(), first.params["until"])

	// 50 accumulated < (0+2)*50, so the same page request fetches again,
	// passing the continuation cursor verbatim.
	c.RequestPage(0, 50)
	state = waitIdle(t, c)
	assert.Equal(t, 100, state.Total)
	assert.Equal(t, c1, f.call(1).cursor)

	// 100 accumulated >= (0+2)*50: lookahead satisfied, no fetch issued.
	c.RequestPage(0, 50)
	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, 100, c.State().Total)

	// Page 1 needs (1+2)*50 = 150 accumulated, so it fetches once more.
	c.RequestPage(1, 50)
	state = waitIdle(t, c)
	assert.Equal(t, 150, state.Total)
	assert.Equal(t, 3, f.callCount())
}

func TestRequestPageIdempotentWhileLoading(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{
		gate: gate,
		replies: []reply{
			{page: &history.PageResult{Records: mkRecords(10, "a"), NextCursor: "c1"}},
		},
	}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))

	c.RequestPage(0, 10)
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// Back-to-back triggers while the fetch is in flight are no-ops.
	c.RequestPage(0, 10)
	c.RequestPage(0, 10)
	assert.Equal(t, 1, f.callCount())

	close(gate)
	state := waitIdle(t, c)
	assert.Equal(t, 10, state.Total)
	assert.Equal(t, 1, f.callCount())
}

func TestTerminationOnNullCursor(t *testing.T) {
	f := &fakeFetcher{replies: []reply{
		{page: &history.PageResult{Records: mkRecords(7, "a"), NextCursor: ""}},
	}}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))

	c.RequestPage(0, 50)
	state := waitIdle(t, c)
	assert.Equal(t, 7, state.Total)
	assert.True(t, state.AtEnd)

	// End-of-data holds for the rest of the epoch regardless of triggers.
	c.RequestPage(0, 50)
	c.RequestPage(5, 50)
	assert.Equal(t, 1, f.callCount())

	// A filter change resets end-of-data and fetches again.
	c.SetFilters(timeFilter(time.Unix(0, 0), time.Unix(200, 0)))
	c.RequestPage(0, 50)
	waitIdle(t, c)
	assert.Equal(t, 2, f.callCount())
}

func TestTransportFailureRollsBackAndRetries(t *testing.T) {
	f := &fakeFetcher{replies: []reply{
		{page: &history.PageResult{Records: mkRecords(20, "a"), NextCursor: "c1"}},
		{err: errors.New("upstream unreachable")},
		{page: &history.PageResult{Records: mkRecords(20, "b"), NextCursor: "c2"}},
	}}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))

	c.RequestPage(0, 20)
	waitIdle(t, c)

	c.RequestPage(0, 20)
	state := waitIdle(t, c)
	assert.Contains(t, state.LastError, "unreachable")
	assert.Equal(t, 20, state.Total, "records keep their pre-request value")
	assert.False(t, state.AtEnd)

	// The failed fetch left the cursor untouched, so the retry resumes
	// from the same spot and clears the error.
	c.RequestPage(0, 20)
	state = waitIdle(t, c)
	assert.Empty(t, state.LastError)
	assert.Equal(t, 40, state.Total)
	assert.Equal(t, "c1", f.call(2).cursor)
}

func TestStaleResponseNeverMergedAfterFilterChange(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{
		gate:         gate,
		ignoreCancel: true,
		replies: []reply{
			{page: &history.PageResult{Records: mkRecords(50, "stale"), NextCursor: "stale"}},
			{page: &history.PageResult{Records: mkRecords(5, "fresh"), NextCursor: ""}},
		},
	}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))

	c.RequestPage(0, 50)
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// Filter change supersedes the in-flight fetch and starts a new epoch.
	c.SetFilters([]models.FilterEntry{
		{ID: models.FilterTime, Value: models.RangeValue(time.Unix(0, 0), time.Unix(100, 0))},
		{ID: models.FilterDomain, Value: models.TextValue("fresh")},
	})
	assert.Equal(t, 0, c.State().Total)

	c.RequestPage(0, 50)
	require.Eventually(t, func() bool { return f.callCount() == 2 }, time.Second, 5*time.Millisecond)

	// Both fetches now resolve; the stale one must be discarded even
	// though it delivers records.
	close(gate)
	state := waitIdle(t, c)
	assert.Equal(t, 5, state.Total)
	assert.True(t, state.AtEnd)

	records := c.Records()
	for _, r := range records {
		assert.Contains(t, r.Domain, "fresh")
	}
}

func TestTeardownFreezesState(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{
		gate:         gate,
		ignoreCancel: true,
		replies: []reply{
			{page: &history.PageResult{Records: mkRecords(50, "late"), NextCursor: "c1"}},
		},
	}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))

	c.RequestPage(0, 50)
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Teardown()
	close(gate)

	// The late resolution is discarded and further triggers are no-ops.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, c.State().Total)
	c.RequestPage(0, 50)
	c.SetFilters(timeFilter(time.Unix(0, 0), time.Unix(200, 0)))
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, 0, c.State().Total)
}

type recordingSink struct {
	mu       sync.Mutex
	appended int
	resets   int
}

func (s *recordingSink) Append(records []models.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended += len(records)
	return nil
}

func (s *recordingSink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func TestSinkFollowsEpochs(t *testing.T) {
	f := &fakeFetcher{replies: []reply{
		{page: &history.PageResult{Records: mkRecords(30, "a"), NextCursor: "c1"}},
		{page: &history.PageResult{Records: mkRecords(10, "b"), NextCursor: ""}},
	}}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))
	sink := &recordingSink{}
	c.AttachSink(sink)

	c.RequestPage(0, 30)
	waitIdle(t, c)

	c.SetFilters(timeFilter(time.Unix(0, 0), time.Unix(50, 0)))
	c.RequestPage(0, 30)
	waitIdle(t, c)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 40, sink.appended)
	assert.Equal(t, 1, sink.resets)
}

type failingSink struct{}

func (failingSink) Append([]models.LogRecord) error { return errors.New("disk full") }
func (failingSink) Reset() error                    { return errors.New("disk full") }

func TestSinkFailureDoesNotAffectRecords(t *testing.T) {
	f := &fakeFetcher{replies: []reply{
		{page: &history.PageResult{Records: mkRecords(15, "a"), NextCursor: "c1"}},
	}}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))
	c.AttachSink(failingSink{})

	c.RequestPage(0, 15)
	state := waitIdle(t, c)

	// The mirror write failed but the merged records stay authoritative.
	assert.Equal(t, 15, state.Total)
	assert.Empty(t, state.LastError)

	c.SetFilters(timeFilter(time.Unix(0, 0), time.Unix(50, 0)))
	assert.Equal(t, 0, c.State().Total)
}

func TestWindowClipsToFetched(t *testing.T) {
	f := &fakeFetcher{replies: []reply{
		{page: &history.PageResult{Records: mkRecords(25, "a"), NextCursor: "c1"}},
	}}
	c := New(f, timeFilter(time.Unix(0, 0), time.Unix(100, 0)))

	c.RequestPage(0, 25)
	waitIdle(t, c)

	assert.Len(t, c.Window(0, 10), 10)
	assert.Len(t, c.Window(2, 10), 5)
	assert.Empty(t, c.Window(3, 10))
	assert.Empty(t, c.Window(-1, 10))
}
