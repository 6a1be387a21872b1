package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/loopline/backend/internal/engine"
	"github.com/labstack/echo/v4"
)

// EventHandler is the intake endpoint the business services (posts,
// comments, follows, chat) call to emit notification events.
type EventHandler struct {
	engine *engine.Engine
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eng *engine.Engine) *EventHandler {
	return &EventHandler{engine: eng}
}

// RegisterEventRoutes registers the internal intake route
func (h *EventHandler) RegisterEventRoutes(g *echo.Group) {
	g.POST("/events", h.EmitEvent)
}

// EmitEvent validates the event synchronously, then hands it to the
// engine worker pool so the calling service is never slowed by
// notification work.
func (h *EventHandler) EmitEvent(c echo.Context) error {
	var ev engine.Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if err := ev.Validate(); err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if !h.engine.Submit(ev) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Intake queue full")
	}

	return c.JSON(http.StatusAccepted, echo.Map{"success": true, "data": echo.Map{"accepted": true}})
}
