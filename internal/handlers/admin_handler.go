package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/loopline/backend/internal/engine"
	"github.com/labstack/echo/v4"
)

// AdminHandler exposes the ops surface: retention cleanup and health numbers.
type AdminHandler struct {
	engine *engine.Engine
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(eng *engine.Engine) *AdminHandler {
	return &AdminHandler{engine: eng}
}

// RegisterAdminRoutes registers the ops routes
func (h *AdminHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/notifications/cleanup-expired", h.CleanupExpired)
	g.POST("/notifications/cleanup-read", h.CleanupRead)
	g.GET("/notifications/stats", h.Stats)
}

// CleanupExpired removes notifications past their expiry
func (h *AdminHandler) CleanupExpired(c echo.Context) error {
	deleted, err := h.engine.CleanupExpired(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"deleted": deleted}})
}

// CleanupRead removes read notifications older than ?days (default 30)
func (h *AdminHandler) CleanupRead(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid days parameter")
		}
		days = parsed
	}

	deleted, err := h.engine.CleanupReadOlderThan(c.Request().Context(), days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"deleted": deleted}})
}

// Stats returns hourly/daily volume, read rate and unread backlog
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.engine.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"stats": stats}})
}
