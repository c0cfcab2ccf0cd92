package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dns-log-viewer/backend/internal/archive"
	"github.com/dns-log-viewer/backend/internal/logview"
	"github.com/dns-log-viewer/backend/internal/models"
)

// MaxSessions limits concurrent views to prevent memory exhaustion.
const MaxSessions = 32

// SessionKeepAliveWindow is how long a view survives without any request
// before the periodic cleanup may reap it.
const SessionKeepAliveWindow = 5 * time.Minute

// Options tunes the per-view machinery.
type Options struct {
	TempDir        string         // DuckDB archive directory
	ArchiveTuning  archive.Tuning // per-view DuckDB limits
	DefaultWindow  time.Duration  // seeded time filter span
	FilterDebounce time.Duration  // quiet window for filter edits
	PageDebounce   time.Duration  // quiet window for page requests
}

// viewState bundles everything owned by one open log view.
type viewState struct {
	Session        *models.ViewSession
	Controller     *logview.Controller
	Archive        *archive.DuckStore
	FilterDebounce *logview.Debouncer
	PageDebounce   *logview.Debouncer
}

// Manager owns the open log views: one pagination controller, archive
// store and debouncer pair per view.
type Manager struct {
	sessions map[string]*viewState
	mu       sync.RWMutex
	fetcher  logview.Fetcher
	opts     Options
}

// NewManager creates a view manager backed by the given history fetcher.
func NewManager(fetcher logview.Fetcher, opts Options) *Manager {
	if opts.DefaultWindow <= 0 {
		opts.DefaultWindow = 24 * time.Hour
	}
	return &Manager{
		sessions: make(map[string]*viewState),
		fetcher:  fetcher,
		opts:     opts,
	}
}

// CreateView opens a new log view seeded with the default time filter
// (the time filter is always present on a fresh view).
func (m *Manager) CreateView() (*models.ViewSession, error) {
	m.closeOldestIfNeeded()

	viewID := uuid.New().String()
	sess := models.NewViewSession(viewID)

	controller := logview.New(m.fetcher, models.DefaultFilters(m.opts.DefaultWindow, time.Now()))

	state := &viewState{
		Session:        sess,
		Controller:     controller,
		FilterDebounce: logview.NewDebouncer(m.opts.FilterDebounce),
		PageDebounce:   logview.NewDebouncer(m.opts.PageDebounce),
	}

	if m.opts.TempDir != "" {
		store, err := archive.NewDuckStore(m.opts.TempDir, viewID, m.opts.ArchiveTuning)
		if err != nil {
			// The view still works without the export mirror.
			fmt.Printf("[View %s] WARNING: archive unavailable: %v\n", short(viewID), err)
		} else {
			state.Archive = store
			controller.AttachSink(store)
		}
	}

	m.mu.Lock()
	m.sessions[viewID] = state
	m.mu.Unlock()

	fmt.Printf("[View %s] Created\n", short(viewID))
	return sess, nil
}

// GetView returns view metadata by id.
func (m *Manager) GetView(id string) (*models.ViewSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session, true
}

// TouchView updates the keep-alive timestamp for a view.
func (m *Manager) TouchView(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.Session.LastAccessed = time.Now()
	return true
}

// RequestRows triggers a (debounced) page fetch and returns the rows the
// accumulated records already cover, plus the controller state. The
// trigger is fire-and-forget: when the fetch merges, a subsequent poll or
// the websocket push picks up the new rows.
func (m *Manager) RequestRows(id string, page, pageSize int) ([]models.LogRecord, models.ViewState, bool) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, models.ViewState{}, false
	}

	m.TouchView(id)
	controller := state.Controller
	state.PageDebounce.Trigger(func() {
		controller.RequestPage(page, pageSize)
	})

	return controller.Window(page, pageSize), controller.State(), true
}

// SetFilters replaces a view's filters through the filter debouncer,
// coalescing bursts of widget edits into a single controller reset.
func (m *Manager) SetFilters(id string, filters []models.FilterEntry) bool {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	m.TouchView(id)
	controller := state.Controller
	state.FilterDebounce.Trigger(func() {
		controller.SetFilters(filters)
	})
	return true
}

// ActiveFilters returns the filter set currently driving a view's epoch.
func (m *Manager) ActiveFilters(id string) ([]models.FilterEntry, bool) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return state.Controller.Filters(), true
}

// ViewStateOf returns the render snapshot for a view.
func (m *Manager) ViewStateOf(id string) (models.ViewState, bool) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return models.ViewState{}, false
	}
	return state.Controller.State(), true
}

// ExportCSV streams the current epoch's archived records as CSV.
func (m *Manager) ExportCSV(id string, w io.Writer) error {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("view not found: %s", id)
	}
	if state.Archive == nil {
		return fmt.Errorf("no archive for view: %s", id)
	}
	m.TouchView(id)
	return state.Archive.ExportCSV(w)
}

// CloseView tears a view down: a pending filter edit is flushed first so
// a trailing user action is not lost, pending page requests are dropped,
// the in-flight fetch is canceled and the archive file removed.
func (m *Manager) CloseView(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	m.teardown(state)
	fmt.Printf("[View %s] Closed\n", short(id))
	return true
}

func (m *Manager) teardown(state *viewState) {
	state.FilterDebounce.Flush()
	state.FilterDebounce.Stop()
	state.PageDebounce.Stop()
	state.Controller.Teardown()
	if state.Archive != nil {
		state.Archive.Close()
	}
}

// closeOldestIfNeeded reaps the least recently accessed views when at
// capacity, so an active view is never evicted ahead of an idle one.
func (m *Manager) closeOldestIfNeeded() {
	m.mu.Lock()
	if len(m.sessions) < MaxSessions {
		m.mu.Unlock()
		return
	}

	var toClose []*viewState
	toFree := len(m.sessions) - MaxSessions + 1
	for ; toFree > 0; toFree-- {
		var oldestID string
		var oldest *viewState
		for id, state := range m.sessions {
			if oldest == nil || state.Session.LastAccessed.Before(oldest.Session.LastAccessed) {
				oldestID, oldest = id, state
			}
		}
		if oldest == nil {
			break
		}
		toClose = append(toClose, oldest)
		delete(m.sessions, oldestID)
	}
	m.mu.Unlock()

	for _, state := range toClose {
		m.teardown(state)
		fmt.Printf("[View %s] Reaped to free capacity\n", short(state.Session.ID))
	}
}

// CleanupOldSessions closes views idle for longer than maxAge, keeping
// anything touched within the keep-alive window. Driven by the periodic
// ticker in main.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	var toClose []*viewState
	m.mu.Lock()
	for id, state := range m.sessions {
		if state.Session.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.Session.LastAccessed.Before(cutoff) {
			toClose = append(toClose, state)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, state := range toClose {
		m.teardown(state)
		fmt.Printf("[View %s] Cleaned up aged view (last accessed %s ago)\n",
			short(state.Session.ID), time.Since(state.Session.LastAccessed).Round(time.Second))
	}
}

// Len returns the number of open views.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
