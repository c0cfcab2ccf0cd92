package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dns-log-viewer/backend/internal/models"
	"github.com/dns-log-viewer/backend/internal/presets"
)

// MaxPageSize caps the per-request row window to prevent excessive
// memory usage during rapid scrolling.
const MaxPageSize = 1000

// Handler handles API requests.
type Handler struct {
	views       ViewManager
	actions     DomainActions
	presetsPath string

	presetsMu  sync.RWMutex
	presetList []models.FilterPreset
}

// NewHandler creates a new API handler.
func NewHandler(views ViewManager, actions DomainActions, presetsPath string) *Handler {
	return &Handler{
		views:       views,
		actions:     actions,
		presetsPath: presetsPath,
	}
}

// LoadDefaultPresets loads the default presets.yaml file if it exists.
func (h *Handler) LoadDefaultPresets() error {
	if h.presetsPath == "" {
		return nil
	}
	if _, err := os.Stat(h.presetsPath); os.IsNotExist(err) {
		return nil // No default presets file
	}

	list, err := presets.Load(h.presetsPath)
	if err != nil {
		return fmt.Errorf("failed to load default presets: %w", err)
	}

	h.presetsMu.Lock()
	h.presetList = list
	h.presetsMu.Unlock()
	return nil
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleCreateView opens a new log view session.
func (h *Handler) HandleCreateView(c echo.Context) error {
	sess, err := h.views.CreateView()
	if err != nil {
		return NewInternalError("failed to create view", err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// HandleGetRows triggers a page fetch for the view and returns the rows
// the accumulated records already cover. The fetch itself is debounced
// and asynchronous; clients poll or listen on the websocket for merges.
func (h *Handler) HandleGetRows(c echo.Context) error {
	id := c.Param("viewId")
	page, pageSize := pageParams(c)

	rows, state, ok := h.views.RequestRows(id, page, pageSize)
	if !ok {
		return NewNotFoundError("view", id)
	}

	return c.JSON(http.StatusOK, rowsPayload(rows, state, page, pageSize))
}

// HandleGetRowsMsgpack returns the same payload as HandleGetRows in
// MessagePack format, which is 30-50% smaller than JSON for log rows.
func (h *Handler) HandleGetRowsMsgpack(c echo.Context) error {
	id := c.Param("viewId")
	page, pageSize := pageParams(c)

	rows, state, ok := h.views.RequestRows(id, page, pageSize)
	if !ok {
		return NewNotFoundError("view", id)
	}

	data, err := msgpack.Marshal(rowsPayload(rows, state, page, pageSize))
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleSetFilters replaces the view's active filter set. The reset is
// debounced so bursts of widget edits coalesce into one epoch change.
func (h *Handler) HandleSetFilters(c echo.Context) error {
	id := c.Param("viewId")

	var req struct {
		Filters []models.FilterEntry `json:"filters"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid filter body", err)
	}

	if !h.views.SetFilters(id, req.Filters) {
		return NewNotFoundError("view", id)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "filters updated"})
}

// HandleViewState returns the render snapshot plus the filter set
// driving the current epoch, without triggering a fetch.
func (h *Handler) HandleViewState(c echo.Context) error {
	id := c.Param("viewId")
	state, ok := h.views.ViewStateOf(id)
	if !ok {
		return NewNotFoundError("view", id)
	}
	filters, _ := h.views.ActiveFilters(id)
	if filters == nil {
		filters = []models.FilterEntry{}
	}
	h.views.TouchView(id)

	return c.JSON(http.StatusOK, struct {
		models.ViewState
		Filters []models.FilterEntry `json:"filters"`
	}{state, filters})
}

// HandleViewKeepAlive allows clients to explicitly keep a view alive
// while the user is looking at it without making data requests.
func (h *Handler) HandleViewKeepAlive(c echo.Context) error {
	id := c.Param("viewId")
	if !h.views.TouchView(id) {
		return NewNotFoundError("view", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleCloseView tears a view down. Any in-flight fetch is canceled and
// its late result discarded.
func (h *Handler) HandleCloseView(c echo.Context) error {
	id := c.Param("viewId")
	if !h.views.CloseView(id) {
		return NewNotFoundError("view", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleExportCSV streams the current filter epoch's records as CSV.
func (h *Handler) HandleExportCSV(c echo.Context) error {
	id := c.Param("viewId")
	if _, ok := h.views.GetView(id); !ok {
		return NewNotFoundError("view", id)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=query-log-%s.csv", time.Now().Format("2006-01-02")))
	c.Response().WriteHeader(http.StatusOK)

	if err := h.views.ExportCSV(id, c.Response()); err != nil {
		// Headers are already out; log and cut the stream.
		fmt.Printf("[API] ExportCSV failed for view %s: %v\n", id, err)
	}
	return nil
}

// HandleAllowDomain whitelists a domain at the resolver. Row actions are
// fire-and-forget for the view: the log rows are not rewritten locally.
func (h *Handler) HandleAllowDomain(c echo.Context) error {
	return h.domainAction(c, h.actions.AddToAllowlist)
}

// HandleDenyDomain blacklists a domain at the resolver.
func (h *Handler) HandleDenyDomain(c echo.Context) error {
	return h.domainAction(c, h.actions.AddToDenylist)
}

func (h *Handler) domainAction(c echo.Context, action func(ctx context.Context, domain string) error) error {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Domain == "" {
		return NewBadRequestError("domain is required", nil)
	}

	if err := action(c.Request().Context(), req.Domain); err != nil {
		return NewUpstreamError("domain action failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "domain": req.Domain})
}

// HandleGetPresets returns the saved filter presets.
func (h *Handler) HandleGetPresets(c echo.Context) error {
	h.presetsMu.RLock()
	list := h.presetList
	h.presetsMu.RUnlock()

	if list == nil {
		list = []models.FilterPreset{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"presets": list})
}

// HandleUploadPresets accepts a YAML preset file as base64 JSON,
// validates it and makes it the active preset set.
func (h *Handler) HandleUploadPresets(c echo.Context) error {
	var req struct {
		Data string `json:"data"` // Base64-encoded YAML
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Data == "" {
		return NewBadRequestError("data is required", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	list, err := presets.ParseFromBytes(decoded)
	if err != nil {
		return NewBadRequestError("invalid YAML format", err)
	}

	if h.presetsPath != "" {
		if err := presets.Save(h.presetsPath, list); err != nil {
			return NewInternalError("failed to save presets", err)
		}
	}

	h.presetsMu.Lock()
	h.presetList = list
	h.presetsMu.Unlock()

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"presets": list,
		"count":   len(list),
	})
}

// HandleGetCodes returns the display code tables so the table surface
// renders the same enumerations the history service emits. The blocked
// flags tell the surface which row action (allow vs deny) applies per
// status code.
func (h *Handler) HandleGetCodes(c echo.Context) error {
	blocked := make([]bool, len(models.StatusLabels))
	for code := range blocked {
		blocked[code] = models.BlockedStatus(code)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"queryTypes":      models.QueryTypeLabels,
		"statuses":        models.StatusLabels,
		"blockedStatuses": blocked,
		"dnssec":          models.DNSSECLabels,
		"replies":         models.ReplyLabels,
	})
}

func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 {
		pageSize = 100
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func rowsPayload(rows []models.LogRecord, state models.ViewState, page, pageSize int) map[string]interface{} {
	return map[string]interface{}{
		"rows":      rows,
		"total":     state.Total,
		"page":      page,
		"pageSize":  pageSize,
		"loading":   state.Loading,
		"atEnd":     state.AtEnd,
		"lastError": state.LastError,
	}
}
