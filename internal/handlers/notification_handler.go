package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/loopline/backend/internal/engine"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	engine *engine.Engine
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(eng *engine.Engine) *NotificationHandler {
	return &NotificationHandler{engine: eng}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read", h.MarkRead)
	g.PUT("/notifications/unread", h.MarkUnread)
	g.PUT("/notifications/read-all", h.MarkAllRead)
	g.GET("/notifications/preferences", h.GetPreferences)
	g.PUT("/notifications/preferences", h.UpdatePreferences)
}

// MarkRequest is the bulk read/unread payload.
type MarkRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	filter := repositories.ListFilter{
		Page:       page,
		Limit:      limit,
		UnreadOnly: c.QueryParam("unread") == "true",
	}
	if kind := c.QueryParam("kind"); kind != "" {
		k := models.Kind(kind)
		if !k.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown notification kind")
		}
		filter.Kind = k
	}

	notifications, total, err := h.engine.List(c.Request().Context(), currentUserID, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	today, yesterday, thisWeek, older, err := h.engine.GetGrouped(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	unreadCount, _ := h.engine.UnreadCount(c.Request().Context(), currentUserID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": echo.Map{
				"today":     today,
				"yesterday": yesterday,
				"thisWeek":  thisWeek,
				"older":     older,
			},
			"unreadCount": unreadCount,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	count, err := h.engine.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkRead marks a batch of notifications as read
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req MarkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.engine.MarkRead(c.Request().Context(), currentUserID, req.IDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": updated}})
}

// MarkUnread marks a batch of notifications as unread
func (h *NotificationHandler) MarkUnread(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req MarkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.engine.MarkUnread(c.Request().Context(), currentUserID, req.IDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": updated}})
}

// MarkAllRead marks all notifications as read
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	updated, err := h.engine.MarkAllRead(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": updated}})
}

// GetPreferences returns the user's notification preferences
func (h *NotificationHandler) GetPreferences(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	prefs, err := h.engine.GetPreferences(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"preferences": prefs}})
}

// UpdatePreferences applies partial preference changes
func (h *NotificationHandler) UpdatePreferences(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpdatePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// Quiet hours come and go as a pair.
	if (req.QuietHoursStart == nil) != (req.QuietHoursEnd == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, "quiet_hours_start and quiet_hours_end must be set together")
	}

	prefs, err := h.engine.GetPreferences(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	applyPreferenceChanges(prefs, &req)

	if err := h.engine.UpdatePreferences(c.Request().Context(), prefs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"preferences": prefs}})
}

func applyPreferenceChanges(prefs *models.NotificationPreferences, req *models.UpdatePreferencesRequest) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&prefs.FollowEnabled, req.FollowEnabled)
	setBool(&prefs.LikeEnabled, req.LikeEnabled)
	setBool(&prefs.CommentEnabled, req.CommentEnabled)
	setBool(&prefs.ReplyEnabled, req.ReplyEnabled)
	setBool(&prefs.MentionEnabled, req.MentionEnabled)
	setBool(&prefs.MessageEnabled, req.MessageEnabled)
	setBool(&prefs.ShareEnabled, req.ShareEnabled)
	setBool(&prefs.SystemEnabled, req.SystemEnabled)
	setBool(&prefs.EmailEnabled, req.EmailEnabled)
	setBool(&prefs.PushEnabled, req.PushEnabled)

	if req.ClearQuietHours {
		prefs.QuietHoursStart = nil
		prefs.QuietHoursEnd = nil
	} else if req.QuietHoursStart != nil && req.QuietHoursEnd != nil {
		prefs.QuietHoursStart = req.QuietHoursStart
		prefs.QuietHoursEnd = req.QuietHoursEnd
	}
}
