package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/delivery"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// NotificationsHandler serves the polling inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
	complaints    *service.ComplaintService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService, complaints *service.ComplaintService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, complaints: complaints}
}

// Inbox GET /notifications. Without ticket_id it returns the caller's own
// inbox; with it, the ticket room, subject to ticket visibility.
func (h *NotificationsHandler) Inbox(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	audience := personalAudience(actor)
	if ticketID := c.Query("ticket_id"); ticketID != "" {
		if _, err := h.complaints.GetTicket(c.UserContext(), actor, ticketID); err != nil {
			return err
		}
		audience = domain.RoomAudience(ticketID)
	}

	items, err := h.notifications.Inbox(c.UserContext(), audience, parseInt(c.Query("limit"), 50))
	if err != nil {
		if errors.Is(err, delivery.ErrInboxUnsupported) {
			return apperrors.NewDomainError("INBOX_UNAVAILABLE", "notification inbox is not enabled", fiber.StatusNotImplemented, nil)
		}
		return err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return c.JSON(fiber.Map{"data": items, "audience": audience.Key()})
}

func personalAudience(actor domain.Actor) domain.Audience {
	switch actor.Role {
	case domain.RoleSupervisor:
		return domain.SupervisorsAudience()
	case domain.RoleHandler:
		return domain.HandlerAudience(actor.ID)
	default:
		return domain.UserAudience(actor.ID)
	}
}
