package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ebarangay/registry-system/internal/api/metrics"
	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

// NotificationHandler serves the derived alert list and its read/cleared
// disposition. Alerts are recomputed from the credential record on every
// fetch; only the disposition is persisted.
type NotificationHandler struct {
	credentials   ports.CredentialService
	notifications ports.NotificationService
}

func NewNotificationHandler(credentials ports.CredentialService, notifications ports.NotificationService) *NotificationHandler {
	return &NotificationHandler{credentials: credentials, notifications: notifications}
}

// List handles GET /v1/notifications. A caller without a credential record
// simply has no notifications.
//
// @Summary      List the caller's notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listNotificationsResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	record, err := h.credentials.GetByUser(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return c.JSON(http.StatusOK, listNotificationsResponse{Data: []notificationResponse{}})
		}
		return err
	}

	list, err := h.notifications.Refresh(c.Request().Context(), record)
	if err != nil {
		return err
	}

	rows := make([]notificationResponse, 0, len(list))
	unread := 0
	for _, n := range list {
		metrics.NotificationsDerivedTotal.WithLabelValues(string(n.Type)).Inc()
		if !n.Read {
			unread++
		}
		rows = append(rows, notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Timestamp: n.Timestamp,
			Read:      n.Read,
		})
	}
	return c.JSON(http.StatusOK, listNotificationsResponse{Data: rows, Unread: unread})
}

// MarkRead handles POST /v1/notifications/:id/read.
//
// @Summary      Mark one notification as read
// @Tags         notifications
// @Security     BearerAuth
// @Param        id  path  string  true  "Notification id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead handles POST /v1/notifications/read-all.
//
// @Summary      Mark all current notifications as read
// @Tags         notifications
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /v1/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	record, err := h.credentials.GetByUser(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return c.NoContent(http.StatusNoContent)
		}
		return err
	}
	if err := h.notifications.MarkAllRead(c.Request().Context(), record); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear handles DELETE /v1/notifications/:id.
//
// @Summary      Dismiss one notification
// @Tags         notifications
// @Security     BearerAuth
// @Param        id  path  string  true  "Notification id"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /v1/notifications/{id} [delete]
func (h *NotificationHandler) Clear(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.notifications.Clear(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearAll handles DELETE /v1/notifications.
//
// @Summary      Dismiss all current notifications
// @Tags         notifications
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /v1/notifications [delete]
func (h *NotificationHandler) ClearAll(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	record, err := h.credentials.GetByUser(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return c.NoContent(http.StatusNoContent)
		}
		return err
	}
	if err := h.notifications.ClearAll(c.Request().Context(), record); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
