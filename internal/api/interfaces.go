// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/dns-log-viewer/backend/internal/models"
)

// ViewManager defines the interface for the view session manager.
// This allows mocking in tests.
type ViewManager interface {
	CreateView() (*models.ViewSession, error)
	GetView(id string) (*models.ViewSession, bool)
	TouchView(id string) bool
	RequestRows(id string, page, pageSize int) ([]models.LogRecord, models.ViewState, bool)
	SetFilters(id string, filters []models.FilterEntry) bool
	ActiveFilters(id string) ([]models.FilterEntry, bool)
	ViewStateOf(id string) (models.ViewState, bool)
	ExportCSV(id string, w io.Writer) error
	CloseView(id string) bool
}

// DomainActions is the per-row allow/deny side of the history client.
// Results never feed back into view state.
type DomainActions interface {
	AddToAllowlist(ctx context.Context, domain string) error
	AddToDenylist(ctx context.Context, domain string) error
}
