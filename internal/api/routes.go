// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all API routes with the Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, ws *WebSocketHandler) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", h.HandleHealth)

	// View sessions
	viewGroup := apiGroup.Group("/view")
	viewGroup.POST("", h.HandleCreateView)
	viewGroup.GET("/:viewId/rows", h.HandleGetRows)
	viewGroup.GET("/:viewId/rows/msgpack", h.HandleGetRowsMsgpack)
	viewGroup.PUT("/:viewId/filters", h.HandleSetFilters)
	viewGroup.GET("/:viewId/state", h.HandleViewState)
	viewGroup.POST("/:viewId/keepalive", h.HandleViewKeepAlive)
	viewGroup.GET("/:viewId/export", h.HandleExportCSV)
	viewGroup.GET("/:viewId/ws", ws.HandleViewSocket)
	viewGroup.DELETE("/:viewId", h.HandleCloseView)

	// Row actions against the resolver's domain lists
	domainGroup := apiGroup.Group("/domains")
	domainGroup.POST("/allow", h.HandleAllowDomain)
	domainGroup.POST("/deny", h.HandleDenyDomain)

	// Filter presets
	apiGroup.GET("/presets", h.HandleGetPresets)
	apiGroup.POST("/presets", h.HandleUploadPresets)

	// Shared code tables for the table widgets
	apiGroup.GET("/meta/codes", h.HandleGetCodes)
}
